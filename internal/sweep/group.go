package sweep

import "github.com/aa-dank/slug-sweep-deduper/internal/model"

// Group is the set of discovered records for one logical file.
type Group struct {
	FileID  int64
	Records []model.FileRecord
}

// GroupByFileID groups records by FileID. Groups keep the order in which each
// FileID was first seen, and records keep their order within a group.
func GroupByFileID(records []model.FileRecord) []Group {
	index := make(map[int64]int)
	var groups []Group
	for _, r := range records {
		i, ok := index[r.FileID]
		if !ok {
			i = len(groups)
			index[r.FileID] = i
			groups = append(groups, Group{FileID: r.FileID})
		}
		groups[i].Records = append(groups[i].Records, r)
	}
	return groups
}
