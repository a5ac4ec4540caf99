package observability

// MetricPrefix namespaces every instrument
const MetricPrefix = "apocaliptyx"

// Metric names
const (
	LedgerTransactionsTotal = MetricPrefix + ".ledger.transactions_total"
	StealAttemptsTotal      = MetricPrefix + ".steals.attempts_total"
	ShieldsAppliedTotal     = MetricPrefix + ".shields.applied_total"
	PoolRecalculationsTotal = MetricPrefix + ".pools.recalculations_total"
	EventsPublishedTotal    = MetricPrefix + ".events.published_total"
	DatabaseQueryDuration   = MetricPrefix + ".database.query_duration"
)

// Label keys
const (
	LabelType      = "type"
	LabelOutcome   = "outcome"
	LabelTier      = "tier"
	LabelTrigger   = "trigger"
	LabelEventType = "event_type"
	LabelOperation = "operation"
)

// Steal outcomes
const (
	StealOutcomeSuccess      = "success"
	StealOutcomeShielded     = "shielded"
	StealOutcomeInsufficient = "insufficient_funds"
	StealOutcomeRaceLost     = "race_lost"
	StealOutcomeRejected     = "rejected"
	StealOutcomeError        = "error"
)

// Pool recalculation triggers
const (
	RecalcTriggerPrediction = "prediction"
	RecalcTriggerSchedule   = "schedule"
	RecalcTriggerManual     = "manual"
)
