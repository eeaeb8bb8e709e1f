package transcript

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// UnknownSpeaker is used when a segment does not identify its participant.
// Lines of an unknown speaker are emitted without a prefix.
const UnknownSpeaker = "Unknown"

// Parse decodes a JSON transcript document and normalizes it. Numbers are
// kept as json.Number so participant ids print as written.
func Parse(data []byte) (string, bool) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var payload any
	if err := dec.Decode(&payload); err != nil {
		return "", false
	}
	if dec.More() {
		return "", false
	}
	return Normalize(payload)
}

// Normalize converts a decoded transcript document into text. The boolean
// result is false when the document holds no extractable content.
func Normalize(payload any) (string, bool) {
	if items, ok := payload.([]any); ok && isParticipantWords(items) {
		return joinLines(participantLines(items))
	}

	segments, text, ok := locateSegments(payload)
	if !ok {
		return "", false
	}
	if segments == nil {
		return text, text != ""
	}
	return joinLines(segmentLines(segments))
}

func isParticipantWords(items []any) bool {
	if len(items) == 0 {
		return false
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return false
	}
	_, hasParticipant := first["participant"]
	_, hasWords := first["words"]
	return hasParticipant && hasWords
}

func participantLines(items []any) []string {
	var (
		lines   []string
		speaker string
		words   []string
	)

	flush := func() {
		if len(words) == 0 {
			return
		}
		lines = append(lines, formatLine(speaker, strings.Join(words, " ")))
		words = nil
	}

	for _, item := range items {
		segment, ok := item.(map[string]any)
		if !ok {
			continue
		}

		participant := participantName(firstPresent(segment, "participant", "speaker"))
		if participant != speaker {
			flush()
		}
		speaker = participant

		tokens, _ := segment["words"].([]any)
		for _, token := range tokens {
			switch w := token.(type) {
			case map[string]any:
				if text := firstString(w, "text", "word", "content"); text != "" {
					words = append(words, text)
				}
			case string:
				words = append(words, w)
			}
		}
	}
	flush()

	return lines
}

// locateSegments finds the segment list of a fallback-shaped document. When
// the document carries a direct text field, segments is nil and text is
// returned instead.
func locateSegments(payload any) (segments []any, text string, ok bool) {
	switch v := payload.(type) {
	case []any:
		return v, "", len(v) > 0
	case map[string]any:
		if s, found := v["segments"]; found {
			list, _ := s.([]any)
			return list, "", len(list) > 0
		}
		if w, found := v["words"]; found {
			list, _ := w.([]any)
			return list, "", len(list) > 0
		}
		if t, found := v["text"]; found {
			s, _ := t.(string)
			return nil, s, s != ""
		}
		if t, found := v["transcript"]; found {
			s, _ := t.(string)
			return nil, s, s != ""
		}
		// Keys are visited in sorted order so the choice is stable.
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		slices.Sort(keys)
		for _, key := range keys {
			list, isList := v[key].([]any)
			if !isList || len(list) == 0 {
				continue
			}
			first, isObject := list[0].(map[string]any)
			if !isObject {
				continue
			}
			if hasAny(first, "text", "word", "content") {
				return list, "", true
			}
		}
	}
	return nil, "", false
}

func segmentLines(segments []any) []string {
	var lines []string
	for _, item := range segments {
		switch segment := item.(type) {
		case map[string]any:
			text := firstString(segment, "text", "word", "content", "transcript")
			if text == "" {
				continue
			}
			speaker := firstPresent(segment, "speaker", "speaker_name", "participant")
			if speaker == nil {
				lines = append(lines, text)
			} else {
				lines = append(lines, participantName(speaker)+": "+text)
			}
		case string:
			lines = append(lines, segment)
		}
	}
	return lines
}

// participantName resolves a participant reference that is either a plain
// string or an object with a name or id.
func participantName(v any) string {
	switch p := v.(type) {
	case string:
		if p != "" {
			return p
		}
	case map[string]any:
		if name := firstString(p, "name"); name != "" {
			return name
		}
		if id := p["id"]; isTruthy(id) {
			return formatID(id)
		}
	}
	return UnknownSpeaker
}

func formatID(id any) string {
	switch v := id.(type) {
	case json.Number:
		return v.String()
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

func formatLine(speaker, sentence string) string {
	if speaker == "" || speaker == UnknownSpeaker {
		return sentence
	}
	return speaker + ": " + sentence
}

func joinLines(lines []string) (string, bool) {
	if len(lines) == 0 {
		return "", false
	}
	return strings.Join(lines, "\n"), true
}

// firstPresent returns the first value under keys that is not empty.
func firstPresent(m map[string]any, keys ...string) any {
	for _, k := range keys {
		if v, ok := m[k]; ok && isTruthy(v) {
			return v
		}
	}
	return nil
}

func firstString(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, k := range keys {
		if _, ok := m[k]; ok {
			return true
		}
	}
	return false
}

func isTruthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
