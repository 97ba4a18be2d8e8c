package course

import (
	_ "embed"
	"encoding/json"

	"github.com/pkg/errors"
)

// The bundled curriculum seed. User-authored records overlay it by id; the
// seed itself is immutable and never written back to the store.
var (
	//go:embed data/courses.json
	seedCoursesJSON []byte
	//go:embed data/tasks.json
	seedTasksJSON []byte
)

func loadSeed() (map[string]Course, []Task, error) {
	courses := make(map[string]Course)
	if err := json.Unmarshal(seedCoursesJSON, &courses); err != nil {
		return nil, nil, errors.Wrap(err, "parsing course seed")
	}
	for code, c := range courses {
		if c.ID == "" {
			c.ID = code
		}
		courses[code] = c
	}

	var tasks []Task
	if err := json.Unmarshal(seedTasksJSON, &tasks); err != nil {
		return nil, nil, errors.Wrap(err, "parsing task seed")
	}
	return courses, tasks, nil
}
