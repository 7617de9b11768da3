// Package schedule expands legacy recurring templates (one weekday between
// two dates) into the direct-date sessions the booking service stores.
package schedule

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/iliyamo/class-booking/internal/booking"
	"github.com/iliyamo/class-booking/internal/model"
)

// Template is one recurring rule:
//
//	class_id: 12
//	capacity: 10
//	start_date: 2026-01-05
//	end_date: 2026-03-30
//	weekday: monday
//	start_time: "18:00"
//	end_time: "19:30"
type Template struct {
	ClassID   uint64       `yaml:"class_id"`
	Capacity  int          `yaml:"capacity"`
	StartDate string       `yaml:"start_date"`
	EndDate   string       `yaml:"end_date"`
	Weekday   string       `yaml:"weekday"`
	StartTime string       `yaml:"start_time"`
	EndTime   string       `yaml:"end_time"`
	Status    model.Status `yaml:"status,omitempty"`
}

// maxDays bounds a single template so a typo in end_date cannot flood the
// schedule.
const maxDays = 3 * 366

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// ParseFile reads every template of a (multi-document) YAML file.
func ParseFile(path string) ([]Template, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Parse(data)
}

// Parse decodes templates separated by "---".  Empty documents are skipped.
func Parse(data []byte) ([]Template, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var out []Template
	for {
		var t Template
		if err := dec.Decode(&t); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		if t != (Template{}) {
			out = append(out, t)
		}
	}
	return out, nil
}

// Expand lists one create command per matching weekday between start_date
// and end_date, both inclusive.
func (t Template) Expand() ([]booking.CreateSessionCmd, error) {
	wd, ok := weekdays[strings.ToLower(strings.TrimSpace(t.Weekday))]
	if !ok {
		return nil, fmt.Errorf("class %d: unknown weekday %q", t.ClassID, t.Weekday)
	}
	from, err := model.ParseDate(t.StartDate)
	if err != nil {
		return nil, fmt.Errorf("class %d: start_date: %w", t.ClassID, err)
	}
	to, err := model.ParseDate(t.EndDate)
	if err != nil {
		return nil, fmt.Errorf("class %d: end_date: %w", t.ClassID, err)
	}
	if to < from {
		return nil, fmt.Errorf("class %d: end_date %s is before start_date %s", t.ClassID, to, from)
	}
	if to.Time().Sub(from.Time()) > maxDays*24*time.Hour {
		return nil, fmt.Errorf("class %d: template spans more than %d days", t.ClassID, maxDays)
	}

	offset := (int(wd) - int(from.Time().Weekday()) + 7) % 7
	var cmds []booking.CreateSessionCmd
	for d := from.AddDays(offset); d <= to; d = d.AddDays(7) {
		cmds = append(cmds, booking.CreateSessionCmd{
			ClassID:   t.ClassID,
			Date:      d.String(),
			StartTime: t.StartTime,
			EndTime:   t.EndTime,
			Capacity:  t.Capacity,
			Status:    t.Status,
		})
	}
	return cmds, nil
}

// Creator stores one session; *booking.SessionService implements it.
type Creator interface {
	Create(ctx context.Context, cmd booking.CreateSessionCmd) (*model.Session, error)
}

// Report summarises an import.
type Report struct {
	Created []uint64                   `json:"created"`
	Skipped []booking.CreateSessionCmd `json:"skipped"` // overlapping an existing session
	Failed  []Failure                  `json:"failed"`
}

// Failure is a command the service refused for a reason other than overlap.
type Failure struct {
	Cmd   booking.CreateSessionCmd `json:"cmd"`
	Error string                   `json:"error"`
}

// Import expands every template and creates the sessions.  Overlapping
// dates are skipped and reported, so re-running an import is harmless.
// Only infrastructure errors abort the run.
func Import(ctx context.Context, svc Creator, templates []Template, log *zap.Logger) (Report, error) {
	var rep Report
	for _, t := range templates {
		cmds, err := t.Expand()
		if err != nil {
			return rep, err
		}
		for _, cmd := range cmds {
			sess, err := svc.Create(ctx, cmd)
			switch {
			case err == nil:
				rep.Created = append(rep.Created, sess.ID)
			case errors.Is(err, booking.ErrOverlap):
				log.Info("skipping overlapping session", zap.Uint64("class_id", cmd.ClassID),
					zap.String("date", cmd.Date), zap.String("start", cmd.StartTime))
				rep.Skipped = append(rep.Skipped, cmd)
			case booking.AsError(err).Permanent():
				rep.Failed = append(rep.Failed, Failure{Cmd: cmd, Error: err.Error()})
			default:
				return rep, err
			}
		}
	}
	return rep, nil
}
