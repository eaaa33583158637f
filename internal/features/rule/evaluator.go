package rule

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go-fleetreport/internal/features/event"

	"github.com/d5/tengo/v2"
	"go.uber.org/zap"
)

// EngineName identifies this evaluator in RuleSelector ruleFactoryName lists.
const EngineName = "tengo"

const (
	resultVar    = "__match__"
	maxCached    = 256
	runTimeLimit = 250 * time.Millisecond
)

// Evaluator matches a selector expression against an event record.
type Evaluator interface {
	Name() string
	IsMatch(selector string, rec *event.Record) bool
	CheckSyntax(selector string) bool
}

// TengoEvaluator evaluates selectors as tengo expressions over the record's
// fields, for example `statusCode == 0xF020 && speedKPH > 80`.
type TengoEvaluator struct {
	logger *zap.Logger

	mu    sync.Mutex
	cache map[string]*tengo.Compiled
}

func NewTengoEvaluator(logger *zap.Logger) *TengoEvaluator {
	return &TengoEvaluator{
		logger: logger,
		cache:  make(map[string]*tengo.Compiled),
	}
}

func (e *TengoEvaluator) Name() string {
	return EngineName
}

func (e *TengoEvaluator) CheckSyntax(selector string) bool {
	if strings.TrimSpace(selector) == "" {
		return false
	}
	_, err := e.compiled(selector)
	return err == nil
}

// IsMatch reports whether rec satisfies selector. Compile and runtime
// failures do not match.
func (e *TengoEvaluator) IsMatch(selector string, rec *event.Record) bool {
	if rec == nil {
		return false
	}
	compiled, err := e.compiled(selector)
	if err != nil {
		e.logger.Warn("Invalid rule selector", zap.String("selector", selector), zap.Error(err))
		return false
	}

	c := compiled.Clone()
	for name, value := range recordValues(rec) {
		if err := c.Set(name, value); err != nil {
			e.logger.Warn("Failed to bind rule variable", zap.String("name", name), zap.Error(err))
			return false
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeLimit)
	defer cancel()
	if err := c.RunContext(ctx); err != nil {
		e.logger.Warn("Rule selector failed", zap.String("selector", selector), zap.Error(err))
		return false
	}
	return c.Get(resultVar).Bool()
}

func (e *TengoEvaluator) compiled(selector string) (*tengo.Compiled, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.cache[selector]; ok {
		return c, nil
	}

	script := tengo.NewScript([]byte(fmt.Sprintf("%s := (%s)", resultVar, selector)))
	for name, value := range recordValues(&event.Record{}) {
		if err := script.Add(name, value); err != nil {
			return nil, err
		}
	}
	c, err := script.Compile()
	if err != nil {
		return nil, err
	}

	if len(e.cache) >= maxCached {
		clear(e.cache)
	}
	e.cache[selector] = c
	return c, nil
}

// recordValues exposes the record fields a selector may reference.
func recordValues(rec *event.Record) map[string]any {
	distance, _ := rec.ReportDistanceKM()
	return map[string]any{
		"accountID":  rec.AccountID,
		"deviceID":   rec.DeviceID,
		"driverID":   rec.DriverID,
		"geozoneID":  rec.GeozoneID,
		"address":    rec.Address,
		"timestamp":  rec.Timestamp,
		"statusCode": int64(rec.StatusCode),
		"latitude":   rec.Latitude,
		"longitude":  rec.Longitude,
		"gpsValid":   rec.IsValidGPS(),
		"speedKPH":   rec.SpeedKPH,
		"heading":    rec.Heading,
		"altitude":   rec.Altitude,
		"odometerKM": rec.OdometerKM,
		"distanceKM": distance,
	}
}
