// Package calfile stores the channel calibration in a flat labelled text file:
//
//	gradient: 1.000000,1.000000,1.000000,1.000000,1.000000,1.000000,1.000000,1.000000
//	offset: ...
//	max: ...
//	min: ...
//	ref_volt_1: ...
//	ref_volt_2: ...
//	alarm_max: ...
//	alarm_min: ...
//	armed: 0,0,0,0,0,0,0,0
//	volume: 50
//
// Missing rows, short rows and unparsable cells fall back to the channel defaults.
package calfile

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/itohio/vehiclemon/pkg/channel"
)

// Row labels in file order.
const (
	RowGradient = "gradient"
	RowOffset   = "offset"
	RowMax      = "max"
	RowMin      = "min"
	RowRefVolt1 = "ref_volt_1"
	RowRefVolt2 = "ref_volt_2"
	RowAlarmMax = "alarm_max"
	RowAlarmMin = "alarm_min"
	RowArmed    = "armed"
	RowVolume   = "volume"
)

// PersistenceError wraps a failed load or save.
type PersistenceError struct {
	Op   string
	Path string
	Err  error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("calibration %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// File is a channel.Persister backed by one file.
type File struct {
	path  string
	input channel.InputRange
}

var _ channel.Persister = (*File)(nil)

// New returns a persister for path. input supplies the defaults used for missing cells.
func New(path string, input channel.InputRange) *File {
	return &File{path: path, input: input}
}

// Path returns the file location.
func (f *File) Path() string {
	return f.path
}

// Load reads the file. A missing file returns channel.ErrNotFound.
func (f *File) Load() (channel.Snapshot, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return channel.DefaultSnapshot(f.input), channel.ErrNotFound
		}
		return channel.DefaultSnapshot(f.input), &PersistenceError{Op: "load", Path: f.path, Err: err}
	}
	snap, err := Decode(bytes.NewReader(data), f.input)
	if err != nil {
		return snap, &PersistenceError{Op: "load", Path: f.path, Err: err}
	}
	return snap, nil
}

// Save overwrites the file.
func (f *File) Save(snap channel.Snapshot) error {
	var buf bytes.Buffer
	if err := Encode(&buf, snap); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	if err := os.WriteFile(f.path, buf.Bytes(), 0644); err != nil {
		return &PersistenceError{Op: "save", Path: f.path, Err: err}
	}
	return nil
}

// floatRows maps a row label to the Settings field it carries.
var floatRows = []struct {
	label string
	get   func(*channel.Settings) *float64
}{
	{RowGradient, func(s *channel.Settings) *float64 { return &s.Gradient }},
	{RowOffset, func(s *channel.Settings) *float64 { return &s.Offset }},
	{RowMax, func(s *channel.Settings) *float64 { return &s.DisplayMax }},
	{RowMin, func(s *channel.Settings) *float64 { return &s.DisplayMin }},
	{RowRefVolt1, func(s *channel.Settings) *float64 { return &s.RefVolt1 }},
	{RowRefVolt2, func(s *channel.Settings) *float64 { return &s.RefVolt2 }},
	{RowAlarmMax, func(s *channel.Settings) *float64 { return &s.AlarmMax }},
	{RowAlarmMin, func(s *channel.Settings) *float64 { return &s.AlarmMin }},
}

// Encode writes snap in file format.
func Encode(w io.Writer, snap channel.Snapshot) error {
	bw := bufio.NewWriter(w)
	for _, row := range floatRows {
		values := make([]string, channel.Count)
		for i := range snap.Channels {
			values[i] = strconv.FormatFloat(*row.get(&snap.Channels[i]), 'f', 6, 64)
		}
		fmt.Fprintf(bw, "%s: %s\n", row.label, strings.Join(values, ","))
	}
	armed := make([]string, channel.Count)
	for i := range snap.Channels {
		armed[i] = "0"
		if snap.Channels[i].Armed {
			armed[i] = "1"
		}
	}
	fmt.Fprintf(bw, "%s: %s\n", RowArmed, strings.Join(armed, ","))
	fmt.Fprintf(bw, "%s: %d\n", RowVolume, snap.Volume)
	return bw.Flush()
}

// Decode parses file contents. Only read errors are returned; malformed content degrades
// to defaults cell by cell.
func Decode(r io.Reader, input channel.InputRange) (channel.Snapshot, error) {
	snap := channel.DefaultSnapshot(input)
	rows := make(map[string][]string)

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		label, rest, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		cells := strings.Split(rest, ",")
		for i := range cells {
			cells[i] = strings.TrimSpace(cells[i])
		}
		rows[strings.ToLower(strings.TrimSpace(label))] = cells
	}
	if err := scanner.Err(); err != nil {
		return snap, err
	}

	for _, row := range floatRows {
		cells := rows[row.label]
		for i := 0; i < len(cells) && i < channel.Count; i++ {
			v, err := strconv.ParseFloat(cells[i], 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				continue
			}
			*row.get(&snap.Channels[i]) = v
		}
	}
	cells := rows[RowArmed]
	for i := 0; i < len(cells) && i < channel.Count; i++ {
		v, err := strconv.ParseFloat(cells[i], 64)
		if err != nil {
			continue
		}
		snap.Channels[i].Armed = v != 0
	}
	if cells := rows[RowVolume]; len(cells) > 0 {
		if v, err := strconv.Atoi(cells[0]); err == nil {
			snap.Volume = v
		}
	}
	return snap, nil
}

// IsNotFound reports whether err means no file has been saved yet.
func IsNotFound(err error) bool {
	return errors.Is(err, channel.ErrNotFound)
}
