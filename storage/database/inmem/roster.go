package inmemdb

import (
	"context"
	"sync"

	"github.com/trezcool/evidencehub/core"
	"github.com/trezcool/evidencehub/core/roster"
)

// StudentDirectory is a roster seeded at start-up (dev, tests and the admin CLI).
type StudentDirectory struct {
	mutex    sync.RWMutex
	students map[string]roster.Student
}

var _ roster.Directory = (*StudentDirectory)(nil)

func NewStudentDirectory(students ...roster.Student) *StudentDirectory {
	d := &StudentDirectory{students: make(map[string]roster.Student, len(students))}
	d.Add(students...)
	return d
}

func (d *StudentDirectory) Add(students ...roster.Student) {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	for _, s := range students {
		s.Enrolments = append([]roster.Enrolment(nil), s.Enrolments...)
		d.students[s.ID] = s
	}
}

func (d *StudentDirectory) GetStudent(_ context.Context, id string) (roster.Student, error) {
	d.mutex.RLock()
	defer d.mutex.RUnlock()

	if s, ok := d.students[id]; ok {
		return s, nil
	}
	return roster.Student{}, core.NewNotFoundError("student", id)
}
