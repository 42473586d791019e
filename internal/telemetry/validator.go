package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultHighThreshold je teplota (°C), nad kterou hlásíme "vysokou teplotu".
const DefaultHighThreshold = 30.0

// Názvy polí, které posílá firmware. Starší verze posílala dlouhé názvy
// (macAddress, temperatureCelsius), novější krátké (mac, temp).
var (
	idFields   = []string{"mac", "macAddress"}
	tempFields = []string{"temp", "temperatureCelsius", "temperature"}
)

// Result je výstup validace jedné datové zprávy.
type Result struct {
	Reading Reading

	// High: hodnota překročila práh. Jen signál pro logy/metriky, měření se normálně uloží.
	High bool

	// Fault: senzor sám nahlásil chybu. Reading je v tom případě prázdný a nic se neukládá.
	Fault       bool
	FaultDetail string
}

// Validator převádí surový payload na kanonický Reading.
type Validator struct {
	highThreshold float64
}

// NewValidator vytvoří validátor s daným prahem vysoké teploty.
func NewValidator(highThreshold float64) *Validator {
	return &Validator{highThreshold: highThreshold}
}

// Validate rozparsuje payload datové zprávy uzlu nodeID.
// capturedAt je čas přijetí zprávy dodaný transportem (senzory vlastní hodiny nemají).
//
// Vrací *DecodeError pro nečitelný JSON a *ValidationError pro chybějící/neplatná pole.
func (v *Validator) Validate(nodeID string, payload []byte, capturedAt time.Time) (Result, error) {
	if nodeID == "" {
		return Result{}, &ValidationError{Field: "node_id", Reason: "empty"}
	}

	fields, err := decodeObject(payload)
	if err != nil {
		return Result{}, &DecodeError{Err: err}
	}

	// Hlášení poruchy má přednost, poruchová zpráva typicky teplotu vůbec nemá.
	if detail, faulty := faultIndicator(fields); faulty {
		return Result{Fault: true, FaultDetail: detail}, nil
	}

	tempKey, rawTemp, ok := firstField(fields, tempFields)
	if !ok {
		return Result{}, &ValidationError{Field: tempFields[0], Reason: "missing"}
	}
	value, err := parseNumber(rawTemp)
	if err != nil {
		return Result{}, &ValidationError{Field: tempKey, Reason: err.Error()}
	}

	idKey, rawID, ok := firstField(fields, idFields)
	if !ok {
		return Result{}, &ValidationError{Field: idFields[0], Reason: "missing"}
	}
	deviceID, isString := rawID.(string)
	deviceID = strings.TrimSpace(deviceID)
	if !isString || deviceID == "" {
		return Result{}, &ValidationError{Field: idKey, Reason: "empty or not a string"}
	}

	reading := Reading{
		NodeID:     nodeID,
		DeviceID:   deviceID,
		Value:      value,
		ObservedAt: capturedAt.UTC().Truncate(time.Microsecond),
	}
	return Result{Reading: reading, High: value > v.highThreshold}, nil
}

// decodeObject načte payload jako JSON objekt. Čísla necháváme jako json.Number,
// abychom je převedli sami a poznali text od čísla.
func decodeObject(payload []byte) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()

	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, err
	}
	if fields == nil {
		return nil, errors.New("payload is not a JSON object")
	}
	// Za objektem nesmí nic následovat ({"temp":1} garbage).
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after JSON object")
	}
	return fields, nil
}

func firstField(fields map[string]any, names []string) (string, any, bool) {
	for _, name := range names {
		if raw, ok := fields[name]; ok && raw != nil {
			return name, raw, true
		}
	}
	return "", nil, false
}

// parseNumber přijímá JSON číslo i číselný řetězec ("25.3"), stejně jako firmware parseFloat.
func parseNumber(raw any) (float64, error) {
	var value float64
	switch t := raw.(type) {
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0, fmt.Errorf("not a number: %s", t)
		}
		value = f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0, fmt.Errorf("not a number: %q", t)
		}
		value = f
	default:
		return 0, fmt.Errorf("unexpected type %T", raw)
	}

	if math.IsNaN(value) || math.IsInf(value, 0) {
		return 0, errors.New("not a finite number")
	}
	return value, nil
}

// faultIndicator hledá explicitní hlášení chyby ze senzoru:
// {"error": true}, {"error": "sensor disconnected"} nebo {"status": "error"}.
func faultIndicator(fields map[string]any) (string, bool) {
	switch e := fields["error"].(type) {
	case bool:
		if e {
			return "error", true
		}
	case string:
		if strings.TrimSpace(e) != "" {
			return e, true
		}
	}

	if s, ok := fields["status"].(string); ok {
		if parseStatus(s) == StatusError {
			return s, true
		}
	}
	return "", false
}
