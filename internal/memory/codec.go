package memory

import "github.com/sentinel/edr/internal/domain"

// threatTypeCode/threatTypeFromCode give ThreatType a stable single-byte
// wire representation for the persistence format (§6). New threat types must
// be appended, never inserted, to keep old files loadable.
var threatTypeTable = []domain.ThreatType{
	domain.ThreatTypeNone,
	domain.ThreatTypeJailbreak,
	domain.ThreatTypeInjection,
	domain.ThreatTypeMalware,
	domain.ThreatTypeExfil,
	domain.ThreatTypeEncoding,
	domain.ThreatTypeBehavioral,
	domain.ThreatTypePrivEsc,
	domain.ThreatTypeRateAbuse,
	domain.ThreatTypeCanary,
	domain.ThreatTypeBlocklisted,
}

func threatTypeCode(tt domain.ThreatType) byte {
	for i, v := range threatTypeTable {
		if v == tt {
			return byte(i)
		}
	}
	return 0
}

func threatTypeFromCode(code byte) domain.ThreatType {
	if int(code) < len(threatTypeTable) {
		return threatTypeTable[code]
	}
	return domain.ThreatTypeNone
}

func severityFromByte(b byte) domain.Severity {
	s := domain.Severity(b)
	if s < domain.SeverityNone || s > domain.SeverityCritical {
		return domain.SeverityNone
	}
	return s
}
