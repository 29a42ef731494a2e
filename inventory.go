package rfe

import "fmt"

// Tag report sub-record markers inside an inventory response payload.
const (
	tagIDMarker   byte = 0x01
	tagRSSIMarker byte = 0x02
)

// TagReport is the decoded payload of one inventory response frame. Total
// is the tag count of the whole scan; a scan spans several frames when
// Total exceeds the records one frame can carry.
type TagReport struct {
	Status byte
	Total  int
	Tags   []Tag
}

// ParseTagReport decodes an Inventory-Single response or an
// Inventory-Cyclic interrupt payload:
//
//	status  total  inFrame  ( 0x01 idLen epc[idLen]  0x02 rssi )*inFrame
//
// Records are returned in the order the reader reported them; duplicates
// are preserved. The declared record count must match the bytes present;
// a record that would read past the payload end is rejected rather than
// over-read.
func ParseTagReport(payload []byte) (*TagReport, error) {
	if len(payload) < 3 {
		return nil, fmt.Errorf("%w: tag report header truncated: %d bytes",
			ErrMalformedResponse, len(payload))
	}

	report := &TagReport{
		Status: payload[0],
		Total:  int(payload[1]),
	}
	inFrame := int(payload[2])
	if inFrame > report.Total {
		return nil, fmt.Errorf("%w: frame declares %d records but scan total is %d",
			ErrMalformedResponse, inFrame, report.Total)
	}

	rest := payload[3:]
	report.Tags = make([]Tag, 0, inFrame)
	for i := 0; i < inFrame; i++ {
		if len(rest) < 2 {
			return nil, fmt.Errorf("%w: record %d truncated", ErrMalformedResponse, i)
		}
		if rest[0] != tagIDMarker {
			return nil, fmt.Errorf("%w: record %d: wrong tag ID start 0x%02X",
				ErrMalformedResponse, i, rest[0])
		}
		idLen := int(rest[1])
		rest = rest[2:]

		// idLen bytes of EPC, then the RSSI marker and one signed byte.
		if len(rest) < idLen+2 {
			return nil, fmt.Errorf("%w: record %d: ID length %d exceeds payload",
				ErrMalformedResponse, i, idLen)
		}
		epc := make([]byte, idLen)
		copy(epc, rest[:idLen])
		rest = rest[idLen:]

		if rest[0] != tagRSSIMarker {
			return nil, fmt.Errorf("%w: record %d: wrong RSSI start 0x%02X",
				ErrMalformedResponse, i, rest[0])
		}
		report.Tags = append(report.Tags, Tag{EPC: epc, RSSI: int8(rest[1])})
		rest = rest[2:]
	}

	if len(rest) != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes after %d records",
			ErrMalformedResponse, len(rest), inFrame)
	}
	return report, nil
}
