// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package gormstore holds the record access shared by the gorm-backed
// metadata stores
package gormstore

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/z-vasconcelos/flightsurety/database/models"
)

type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// New prepares an opened gorm handle for use: it enables tracing and creates
// the table schemas
func New(db *gorm.DB, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		// Create logger to throw away logs
		// We do this so we don't have to add guards around every log operation
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	s := &Store{
		db:     db,
		logger: logger,
	}
	// Configure tracing for GORM
	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, err
	}
	for _, model := range models.MigrateModels {
		s.logger.Debug(fmt.Sprintf("creating table: %T", model))
		if err := db.AutoMigrate(model); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// DB returns the underlying GORM database handle
func (s *Store) DB() *gorm.DB {
	return s.db
}

// Close closes the underlying connection pool
func (s *Store) Close() error {
	db, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database handle: %w", err)
	}
	return db.Close()
}

func (s *Store) SaveAirline(a models.Airline) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"name", "state", "funds", "applied_at", "seq"},
		),
	}).Create(&a)
	return result.Error
}

// SaveVotes replaces the votes recorded for a candidate
func (s *Store) SaveVotes(candidate string, voters []string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if result := tx.Where("candidate = ?", candidate).Delete(&models.AirlineVote{}); result.Error != nil {
			return result.Error
		}
		if len(voters) == 0 {
			return nil
		}
		votes := make([]models.AirlineVote, len(voters))
		for i, voter := range voters {
			votes[i] = models.AirlineVote{
				Candidate: candidate,
				Voter:     voter,
				Position:  i,
			}
		}
		return tx.Create(&votes).Error
	})
}

func (s *Store) SaveOracle(o models.Oracle) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "address"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"indexes", "registered_at"},
		),
	}).Create(&o)
	return result.Error
}

func (s *Store) SaveFlight(f models.Flight) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "hash"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"origin", "destination", "status", "status_at"},
		),
	}).Create(&f)
	return result.Error
}

func (s *Store) SavePolicy(p models.Policy) error {
	result := s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "flight_hash"}, {Name: "buyer"}},
		DoUpdates: clause.AssignmentColumns(
			[]string{"paid", "credit", "credited", "credited_at"},
		),
	}).Create(&p)
	return result.Error
}

func (s *Store) SaveContract(c models.Contract) error {
	c.ID = models.ContractID
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"balance", "operational"}),
	}).Create(&c)
	return result.Error
}

func (s *Store) SetJournalCursor(name string, seq uint64) error {
	cursor := models.JournalCursor{Name: name, Seq: seq}
	result := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"seq"}),
	}).Create(&cursor)
	return result.Error
}

func (s *Store) GetAirlines() ([]models.Airline, error) {
	var ret []models.Airline
	result := s.db.Order("seq").Find(&ret)
	return ret, result.Error
}

// GetVotes returns the voters of every candidate in the order votes were cast
func (s *Store) GetVotes() (map[string][]string, error) {
	var votes []models.AirlineVote
	if result := s.db.Order("candidate, position").Find(&votes); result.Error != nil {
		return nil, result.Error
	}
	ret := make(map[string][]string)
	for _, v := range votes {
		ret[v.Candidate] = append(ret[v.Candidate], v.Voter)
	}
	return ret, nil
}

func (s *Store) GetOracles() ([]models.Oracle, error) {
	var ret []models.Oracle
	result := s.db.Order("address").Find(&ret)
	return ret, result.Error
}

func (s *Store) GetFlights() ([]models.Flight, error) {
	var ret []models.Flight
	result := s.db.Order("timestamp, code, airline").Find(&ret)
	return ret, result.Error
}

func (s *Store) GetPolicies() ([]models.Policy, error) {
	var ret []models.Policy
	result := s.db.Order("buyer, flight_hash").Find(&ret)
	return ret, result.Error
}

// GetContract returns the contract row, or a zero value with found set to
// false when none has been saved
func (s *Store) GetContract() (models.Contract, bool, error) {
	var ret models.Contract
	result := s.db.First(&ret, models.ContractID)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return models.Contract{}, false, nil
		}
		return models.Contract{}, false, result.Error
	}
	return ret, true, nil
}

func (s *Store) GetJournalCursor(name string) (uint64, error) {
	var ret models.JournalCursor
	result := s.db.Where("name = ?", name).First(&ret)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		return 0, result.Error
	}
	return ret.Seq, nil
}
