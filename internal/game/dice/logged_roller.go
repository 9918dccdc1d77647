package dice

import "go.uber.org/zap"

// Roller binds a Table to a Source and logs every draw at debug level with
// the chosen range and value.
type Roller struct {
	table  Table
	src    Source
	logger *zap.Logger
}

// NewLoggedRoller creates a Roller that draws from table with src and logs
// each draw to logger.
//
// Precondition: table.Validate() == nil; src and logger must be non-nil.
func NewLoggedRoller(table Table, src Source, logger *zap.Logger) *Roller {
	return &Roller{table: table, src: src, logger: logger}
}

// Table returns the table the Roller draws from.
func (r *Roller) Table() Table { return r.table }

// Roll draws one value and logs it.
//
// Postcondition: the result lies inside one of the table's ranges.
func (r *Roller) Roll() int {
	idx, v := r.table.Pick(r.src)
	r.logger.Debug("weighted draw",
		zap.Int("range_index", idx),
		zap.Stringer("range", r.table[idx]),
		zap.Int("value", v),
	)
	return v
}
