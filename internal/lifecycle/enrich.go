package lifecycle

import "github.com/ukydev/car-rental/internal/models"

// Enrich attaches a vehicle snapshot to a record. A nil subject leaves the
// subject empty; the record itself is always returned.
func Enrich(record models.Record, subject *models.VehicleSnapshot) models.RecordView {
	record.StartDate = record.StartDate.UTC()
	record.EndDate = record.EndDate.UTC()
	record.CreatedAt = record.CreatedAt.UTC()
	record.UpdatedAt = record.UpdatedAt.UTC()
	return models.RecordView{Record: record, Subject: subject}
}

// subjectIDs returns the distinct vehicle ids referenced by records, in first-seen order.
func subjectIDs(records []models.Record) []string {
	seen := make(map[string]struct{}, len(records))
	ids := make([]string, 0, len(records))
	for _, r := range records {
		id := r.SubjectID.Hex()
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	return ids
}
