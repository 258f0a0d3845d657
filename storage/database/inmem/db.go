package inmemdb

import (
	"sync"

	"github.com/pblportal/registry/core/audit"
	"github.com/pblportal/registry/core/fees"
	"github.com/pblportal/registry/core/registration"
	"github.com/pblportal/registry/core/student"
)

// DB is a process-local store. A single lock guards every table so that a transaction
// can hold it and roll back from a snapshot.
type DB struct {
	mu sync.RWMutex
	state
}

type state struct {
	schools     map[string]registration.School
	resources   map[string]registration.Resources
	fees        map[string]registration.Fees
	credentials map[string]registration.Credentials // by username
	students    map[string]student.Student
	studentFees map[string]fees.StudentFees
	auditLogs   []audit.Entry

	credentialsPK int64
	auditPK       int64
	studentSeq    int64
	studentOrder  map[string]int64 // insertion order, breaks createdAt ties
}

func Open() *DB {
	return &DB{state: state{
		schools:      make(map[string]registration.School),
		resources:    make(map[string]registration.Resources),
		fees:         make(map[string]registration.Fees),
		credentials:  make(map[string]registration.Credentials),
		students:     make(map[string]student.Student),
		studentFees:  make(map[string]fees.StudentFees),
		studentOrder: make(map[string]int64),
	}}
}

// snapshot copies the tables. Rows are values; their slices are never mutated in place.
func (s state) snapshot() state {
	cp := s
	cp.schools = make(map[string]registration.School, len(s.schools))
	for k, v := range s.schools {
		cp.schools[k] = v
	}
	cp.resources = make(map[string]registration.Resources, len(s.resources))
	for k, v := range s.resources {
		cp.resources[k] = v
	}
	cp.fees = make(map[string]registration.Fees, len(s.fees))
	for k, v := range s.fees {
		cp.fees[k] = v
	}
	cp.credentials = make(map[string]registration.Credentials, len(s.credentials))
	for k, v := range s.credentials {
		cp.credentials[k] = v
	}
	cp.students = make(map[string]student.Student, len(s.students))
	for k, v := range s.students {
		cp.students[k] = v
	}
	cp.studentOrder = make(map[string]int64, len(s.studentOrder))
	for k, v := range s.studentOrder {
		cp.studentOrder[k] = v
	}
	cp.studentFees = make(map[string]fees.StudentFees, len(s.studentFees))
	for k, v := range s.studentFees {
		cp.studentFees[k] = v
	}
	cp.auditLogs = append([]audit.Entry(nil), s.auditLogs...)
	return cp
}
