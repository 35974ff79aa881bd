package engine

// Reference ranges per vital kind. These are simplified heuristics for
// surfacing readings to a caregiver, not clinical staging.
//
// Blood pressure uses the combined rule: normal iff systolic < 130 AND
// diastolic < 80. Kinds without a table (weight) classify as unknown.

// ClassifyVital judges a value against the reference table for its kind.
// Secondary is the diastolic value for blood pressure and ignored otherwise.
func ClassifyVital(kind VitalKind, value, secondary float64) RangeClass {
	switch kind {
	case VitalBloodPressure:
		if value < 130 && secondary < 80 {
			return RangeNormal
		}
		return RangeAbnormal
	case VitalHeartRate:
		return classifyBand(value, 60, 100)
	case VitalSpO2:
		if value >= 95 {
			return RangeNormal
		}
		return RangeAbnormal
	case VitalTemperature:
		return classifyBand(value, 97.0, 99.0)
	case VitalGlucose:
		return classifyBand(value, 70, 180)
	default:
		return RangeUnknown
	}
}

// ClassifyReading is ClassifyVital over a full reading.
func ClassifyReading(r VitalReading) RangeClass {
	return ClassifyVital(r.Kind, r.Value, r.Secondary)
}

func classifyBand(v, lo, hi float64) RangeClass {
	if v >= lo && v <= hi {
		return RangeNormal
	}
	return RangeAbnormal
}

// breachesWideBand reports whether a reading exceeds the secondary, wider
// threshold that escalates an out-of-range flag to high severity. Values
// outside the normal band but inside the wide band stay medium.
func breachesWideBand(kind VitalKind, value, secondary float64) bool {
	switch kind {
	case VitalGlucose:
		return value < 70 || value > 250
	case VitalHeartRate:
		return value < 50 || value > 120
	case VitalSpO2:
		return value < 90
	case VitalTemperature:
		return value < 95.0 || value > 100.4
	case VitalBloodPressure:
		return value >= 180 || secondary >= 120
	default:
		return false
	}
}

// vitalKindOf maps a sample metric name back to a vital kind, if it is one.
func vitalKindOf(metric string) (VitalKind, bool) {
	switch VitalKind(metric) {
	case VitalBloodPressure, VitalHeartRate, VitalSpO2, VitalTemperature, VitalGlucose, VitalWeight:
		return VitalKind(metric), true
	default:
		return "", false
	}
}
