// Package inmemdb is a process-local store with the same contracts as the postgres repositories.
// Values are copied on the way in and out so callers never share state with the store.
package inmemdb

import (
	"sync"

	"github.com/trezcool/evidencehub/core/catalogue"
	"github.com/trezcool/evidencehub/core/evidence"
	"github.com/trezcool/evidencehub/core/gateway"
	"github.com/trezcool/evidencehub/core/iqa"
	"github.com/trezcool/evidencehub/core/requirement"
	"github.com/trezcool/evidencehub/core/submission"
)

type (
	qualificationTable struct {
		mutex sync.RWMutex
		table map[string]catalogue.Qualification
	}

	itemTable struct {
		mutex sync.RWMutex
		table map[string]evidence.Item
	}

	requirementTable struct {
		mutex sync.RWMutex
		table map[string]requirement.Requirement
	}

	submissionTable struct {
		mutex sync.RWMutex
		table map[string]submission.Submission
	}

	gatewayTable struct {
		mutex sync.RWMutex
		table map[string]gateway.Record
	}

	samplingTable struct {
		mutex sync.RWMutex
		table map[string]iqa.Record
	}

	DB struct {
		qualification *qualificationTable
		item          *itemTable
		requirement   *requirementTable
		submission    *submissionTable
		gateway       *gatewayTable
		sampling      *samplingTable
	}
)

func NewDB() *DB {
	return &DB{
		qualification: &qualificationTable{table: make(map[string]catalogue.Qualification)},
		item:          &itemTable{table: make(map[string]evidence.Item)},
		requirement:   &requirementTable{table: make(map[string]requirement.Requirement)},
		submission:    &submissionTable{table: make(map[string]submission.Submission)},
		gateway:       &gatewayTable{table: make(map[string]gateway.Record)},
		sampling:      &samplingTable{table: make(map[string]iqa.Record)},
	}
}

func cloneStrings(ss []string) []string {
	if ss == nil {
		return nil
	}
	return append([]string(nil), ss...)
}
