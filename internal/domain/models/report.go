package models

import "time"

// ReconciliationReport is the archived form of a published reconciliation summary.
type ReconciliationReport struct {
	Date          string                `bson:"date" json:"date"`
	ChatID        int64                 `bson:"chat_id" json:"chat_id"`
	Processed     int                   `bson:"processed" json:"processed"`
	Discrepancies []DiscrepancyDocument `bson:"discrepancies" json:"discrepancies"`
	Summary       string                `bson:"summary" json:"summary"`
	CreatedAt     time.Time             `bson:"created_at" json:"created_at"`
}

// DiscrepancyDocument is the persisted shape of a Discrepancy.
type DiscrepancyDocument struct {
	Code   string  `bson:"code" json:"code"`
	Name   string  `bson:"name" json:"name"`
	Actual int     `bson:"actual" json:"actual"`
	System float64 `bson:"system" json:"system"`
	Delta  float64 `bson:"delta" json:"delta"`
}
