// Package parser reads drive scripts and detection scripts used to replay
// trips without live hardware: timed speed/steering steps for the cockpit
// and sample-indexed sign detections for the mock classifier.
package parser

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"safedrive-monitor/internal/classifier"
	"safedrive-monitor/internal/models"
)

// DriveStep is one timed control input: at offset At (seconds from trip
// start) the vehicle adopts the given speed and steering.
type DriveStep struct {
	At       float64         `json:"at"`
	Speed    float64         `json:"speed"`
	Steering models.Steering `json:"steering"`
}

// Parser handles parsing of drive script files
type Parser struct {
	format string
}

// NewParser creates a new parser with the specified format
func NewParser(format string) *Parser {
	return &Parser{format: format}
}

// ParseFile parses a drive script file
func (p *Parser) ParseFile(filename string) ([]DriveStep, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	switch strings.ToLower(p.format) {
	case "csv":
		return p.parseCSV(file)
	case "json":
		return p.parseJSON(file)
	case "log":
		return p.parseLog(file)
	default:
		return nil, fmt.Errorf("unsupported format: %s", p.format)
	}
}

// parseCSV parses CSV formatted drive steps with an at,speed,steering header
func (p *Parser) parseCSV(r io.Reader) ([]DriveStep, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1 // Allow variable fields

	// Read header
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	// Map header indices
	indices := make(map[string]int)
	for i, h := range header {
		indices[strings.ToLower(strings.TrimSpace(h))] = i
	}

	var results []DriveStep
	lineNum := 1

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return results, fmt.Errorf("error at line %d: %w", lineNum, err)
		}
		lineNum++

		step, err := recordToStep(record, indices)
		if err != nil {
			// Log error but continue parsing
			fmt.Printf("Warning: line %d: %v\n", lineNum, err)
			continue
		}
		results = append(results, step)
	}

	return results, nil
}

// recordToStep converts a CSV record to a DriveStep
func recordToStep(record []string, indices map[string]int) (DriveStep, error) {
	var step DriveStep

	getValue := func(key string) string {
		if idx, ok := indices[key]; ok && idx < len(record) {
			return strings.TrimSpace(record[idx])
		}
		return ""
	}

	at, err := strconv.ParseFloat(getValue("at"), 64)
	if err != nil {
		return step, fmt.Errorf("invalid offset: %w", err)
	}
	step.At = at
	step.Speed, _ = strconv.ParseFloat(getValue("speed"), 64)
	step.Steering = parseSteering(getValue("steering"))

	return step, nil
}

// parseJSON parses a JSON array of drive steps
func (p *Parser) parseJSON(r io.Reader) ([]DriveStep, error) {
	var results []DriveStep
	if err := json.NewDecoder(r).Decode(&results); err != nil {
		return nil, fmt.Errorf("invalid JSON drive script: %w", err)
	}
	for i := range results {
		results[i].Steering = parseSteering(string(results[i].Steering))
	}
	return results, nil
}

// parseLog parses pipe-delimited drive steps: at|speed|steering
func (p *Parser) parseLog(r io.Reader) ([]DriveStep, error) {
	var results []DriveStep
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			fmt.Printf("Warning: line %d: insufficient fields\n", lineNum)
			continue
		}

		var step DriveStep
		var err error

		step.At, err = strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		if err != nil {
			fmt.Printf("Warning: line %d: invalid offset\n", lineNum)
			continue
		}
		step.Speed, _ = strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if len(parts) > 2 {
			step.Steering = parseSteering(parts[2])
		}

		results = append(results, step)
	}

	return results, scanner.Err()
}

func parseSteering(s string) models.Steering {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left":
		return models.SteerLeft
	case "right":
		return models.SteerRight
	default:
		return models.SteerStraight
	}
}

// ParseDetections reads a detection script for the mock classifier:
// pipe-delimited lines of after_sample|class_id|confidence.
func ParseDetections(filename string) ([]classifier.SequenceStep, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	var steps []classifier.SequenceStep
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			fmt.Printf("Warning: line %d: insufficient fields\n", lineNum)
			continue
		}

		var step classifier.SequenceStep
		step.AfterSample, err = strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			fmt.Printf("Warning: line %d: invalid sample index\n", lineNum)
			continue
		}
		step.ClassID = strings.TrimSpace(parts[1])
		step.Confidence = 0.9
		if len(parts) > 2 {
			step.Confidence, _ = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		}

		steps = append(steps, step)
	}

	return steps, scanner.Err()
}

// ValidateSteps checks a drive script for obvious mistakes.
func ValidateSteps(steps []DriveStep) []string {
	var errors []string

	last := -1.0
	for i, s := range steps {
		if s.At < 0 {
			errors = append(errors, fmt.Sprintf("step %d: offset cannot be negative", i))
		}
		if s.At < last {
			errors = append(errors, fmt.Sprintf("step %d: offsets must not decrease", i))
		}
		last = s.At
		if s.Speed < 0 {
			errors = append(errors, fmt.Sprintf("step %d: speed cannot be negative", i))
		}
	}

	return errors
}
