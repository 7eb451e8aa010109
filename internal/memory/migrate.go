package memory

import "github.com/ppiankov/anamnesis/internal/model"

// migrate backfills fields a record written by an older schema is missing.
// It is idempotent: a record that has already been migrated passes through
// unchanged, so loading a snapshot twice yields identical records.
func migrate(rec model.CaseRecord) model.CaseRecord {
	if rec.AIRootCause == "" {
		if rec.LegacyRootCause != "" {
			rec.AIRootCause = rec.LegacyRootCause
		} else {
			rec.AIRootCause = model.PlaceholderText
		}
	}
	if rec.AIResolution == "" {
		if rec.LegacyResolution != "" {
			rec.AIResolution = rec.LegacyResolution
		} else {
			rec.AIResolution = model.PlaceholderText
		}
	}
	rec.LegacyRootCause = ""
	rec.LegacyResolution = ""

	if rec.ReliabilityScore == 0 {
		rec.ReliabilityScore = model.ReliabilityDefault
	}

	// Verified, FeedbackCount and the analyst fields already default to
	// their zero values on decode.
	return rec
}

// normalizeNew applies the current schema to a record entering the store
// through upsert: default reliability, placeholder AI fields, no analyst
// state. Upserted records are always unverified until feedback says
// otherwise.
func normalizeNew(rec model.CaseRecord) model.CaseRecord {
	rec = migrate(rec)
	rec.Verified = false
	rec.AnalystRootCause = nil
	rec.AnalystResolution = nil
	rec.FeedbackCount = 0
	rec.LastFeedbackAt = ""
	return rec
}
