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

package models

import "github.com/shopspring/decimal"

// ContractID is the primary key of the single Contract row
const ContractID = 1

// Contract holds contract-wide state
type Contract struct {
	Balance     decimal.Decimal `gorm:"type:text"`
	ID          uint            `gorm:"primarykey"`
	Operational bool
}

func (Contract) TableName() string {
	return "contract"
}

// JournalCursor records the last journal entry a consumer has applied
type JournalCursor struct {
	Name string `gorm:"uniqueIndex;size:64"`
	ID   uint   `gorm:"primarykey"`
	Seq  uint64
}

func (JournalCursor) TableName() string {
	return "journal_cursor"
}
