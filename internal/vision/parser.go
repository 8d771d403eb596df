package vision

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"pantry/internal/domain"
)

var ErrParseFailure = errors.New("model output is not a grocery quantity mapping")

// MaxQuantity caps a single inferred quantity.
const MaxQuantity = 10000

// ParseQuantities reads a flat JSON object of item name to positive integer
// quantity. A single Markdown code fence around the object is tolerated;
// anything else that is not exactly such an object is rejected as a whole.
func ParseQuantities(text string) (domain.IngestionResult, error) {
	body, err := unfence(strings.TrimSpace(text))
	if err != nil {
		return nil, err
	}
	if !strings.HasPrefix(body, "{") || !strings.HasSuffix(body, "}") {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrParseFailure)
	}

	dec := json.NewDecoder(bytes.NewReader([]byte(body)))
	dec.UseNumber()

	if tok, err := dec.Token(); err != nil || tok != json.Delim('{') {
		return nil, fmt.Errorf("%w: expected a JSON object", ErrParseFailure)
	}

	result := make(domain.IngestionResult)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("%w: expected an item name", ErrParseFailure)
		}
		name := strings.TrimSpace(key)
		if err := domain.ValidateItemName(name); err != nil {
			return nil, fmt.Errorf("%w: item name %q: %v", ErrParseFailure, key, err)
		}
		if _, dup := result[name]; dup {
			return nil, fmt.Errorf("%w: duplicate item %q", ErrParseFailure, name)
		}

		tok, err = dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrParseFailure, err)
		}
		qty, err := quantity(tok)
		if err != nil {
			return nil, fmt.Errorf("%w: item %q: %v", ErrParseFailure, name, err)
		}
		result[name] = qty
	}

	if tok, err := dec.Token(); err != nil || tok != json.Delim('}') {
		return nil, fmt.Errorf("%w: unterminated object", ErrParseFailure)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrParseFailure)
	}
	if len(result) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrParseFailure)
	}

	return result, nil
}

func unfence(text string) (string, error) {
	if !strings.HasPrefix(text, "```") {
		return text, nil
	}
	newline := strings.IndexByte(text, '\n')
	if newline < 0 || !strings.HasSuffix(text, "```") || len(text) < newline+4 {
		return "", fmt.Errorf("%w: unterminated code fence", ErrParseFailure)
	}
	lang := strings.TrimSpace(text[3:newline])
	if lang != "" && !strings.EqualFold(lang, "json") {
		return "", fmt.Errorf("%w: code fence language %q", ErrParseFailure, lang)
	}
	inner := strings.TrimSpace(text[newline+1 : len(text)-3])
	if strings.Contains(inner, "```") {
		return "", fmt.Errorf("%w: multiple code fences", ErrParseFailure)
	}
	return inner, nil
}

func quantity(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("quantity must be a number, got %T", v)
	}
	if i, err := n.Int64(); err == nil {
		return checkQuantity(i)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) {
		return 0, fmt.Errorf("quantity %s is not an integer", n)
	}
	return checkQuantity(int64(f))
}

func checkQuantity(q int64) (int, error) {
	if q <= 0 {
		return 0, fmt.Errorf("quantity %d is not positive", q)
	}
	if q > MaxQuantity {
		return 0, fmt.Errorf("quantity %d exceeds %d", q, MaxQuantity)
	}
	return int(q), nil
}
