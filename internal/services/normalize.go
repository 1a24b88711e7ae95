// internal/services/normalize.go
package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	appErrors "github.com/Corphon/CampaignStudio/internal/errors"
	"github.com/Corphon/CampaignStudio/internal/models"
)

// ResponseShape names the strategy that produced a ParseResult.
type ResponseShape string

const (
	ShapeNone          ResponseShape = ""
	ShapeStructured    ResponseShape = "structured"
	ShapeJSONString    ResponseShape = "json_string"
	ShapeHeuristicText ResponseShape = "heuristic_text"
)

// Heuristic segmentation lengths, in characters.
const (
	heuristicPreviewLen = 250
	heuristicPostLen    = 200
	heuristicEmailLen   = 150
)

// ParseResult is the outcome of normalizing one generation response.
// Exactly one of Bundle (full requests) or Patch (scoped requests) is set when Err is nil.
type ParseResult struct {
	Shape  ResponseShape
	Bundle *models.ContentBundle
	Patch  models.BundlePatch
	Err    error
}

// OK reports success.
func (r ParseResult) OK() bool { return r.Err == nil }

// errNoMatch marks a strategy that does not recognise the input; the next one is tried.
var errNoMatch = fmt.Errorf("shape not recognised")

// ParseBundleResponse normalizes a response to a "multiple" request.
func ParseBundleResponse(raw []byte, descriptor models.CampaignDescriptor) ParseResult {
	return parseResponse(raw, descriptor, "")
}

// ParseArtifactResponse normalizes a response to a request scoped to one artifact type.
func ParseArtifactResponse(t models.ArtifactType, raw []byte, descriptor models.CampaignDescriptor) ParseResult {
	return parseResponse(raw, descriptor, t)
}

// parseResponse tries the structured, JSON-string and heuristic strategies in that order.
// scope "" means a full bundle.
func parseResponse(raw []byte, descriptor models.CampaignDescriptor, scope models.ArtifactType) ParseResult {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ParseResult{Err: appErrors.NewEmptyResultError("generation response is empty", nil)}
	}

	if res := parseStructured(raw, descriptor, scope); res.Err != errNoMatch {
		res.Shape = ShapeStructured
		return res
	}

	text, isString := extractTextPayload(raw)
	if !isString {
		return ParseResult{Err: appErrors.NewParseError("response matches no accepted shape", nil)}
	}

	if cleaned := cleanJSONString(text); strings.HasPrefix(cleaned, "{") || strings.HasPrefix(cleaned, "[") {
		// a fragment cut out of prose only counts when it decodes cleanly
		res := parseStructured([]byte(cleaned), descriptor, scope)
		if res.Err != errNoMatch && (res.OK() || isWholeJSON(text)) {
			res.Shape = ShapeJSONString
			return res
		}
	}

	res := parseHeuristic(text, descriptor, scope)
	res.Shape = ShapeHeuristicText
	return res
}

// isWholeJSON reports whether text is nothing but JSON, optionally inside a markdown fence.
func isWholeJSON(text string) bool {
	t := strings.TrimSpace(text)
	if strings.HasPrefix(t, "```") && strings.HasSuffix(t, "```") && len(t) >= 6 {
		t = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(t, "```"), "```"))
		t = strings.TrimSpace(strings.TrimPrefix(t, "json"))
	}
	return json.Valid([]byte(t))
}

// extractTextPayload returns the string carried by a JSON string literal, a
// {repurposedContent: string} object, or raw non-JSON text.
func extractTextPayload(raw []byte) (string, bool) {
	if !json.Valid(raw) {
		return string(raw), true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, true
	}

	var wrapper map[string]json.RawMessage
	if err := json.Unmarshal(raw, &wrapper); err != nil {
		return "", false
	}
	inner, ok := wrapper["repurposedContent"]
	if !ok {
		return "", false
	}
	if err := json.Unmarshal(inner, &s); err == nil {
		return s, true
	}
	// repurposedContent already holds an object or array
	return string(inner), true
}

func parseStructured(raw []byte, descriptor models.CampaignDescriptor, scope models.ArtifactType) ParseResult {
	switch raw[0] {
	case '{':
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(raw, &fields); err != nil {
			return ParseResult{Err: errNoMatch}
		}
		if hasBundleKey(fields) {
			if scope == "" {
				return decodeBundle(fields, descriptor)
			}
			value, ok := fields[string(scope)]
			if !ok {
				return ParseResult{Err: appErrors.NewEmptyResultError(
					fmt.Sprintf("response has no %s field", scope), nil)}
			}
			return decodeArtifact(scope, value, descriptor)
		}
		if scope == models.ArtifactEbook && hasAnyKey(fields, "title", "preview", "chapters") {
			return decodeArtifact(scope, raw, descriptor)
		}
		if inner, ok := fields["repurposedContent"]; ok && len(bytes.TrimSpace(inner)) > 0 && bytes.TrimSpace(inner)[0] == '{' {
			return parseStructured(bytes.TrimSpace(inner), descriptor, scope)
		}
		return ParseResult{Err: errNoMatch}
	case '[':
		if scope == "" || scope == models.ArtifactEbook {
			return ParseResult{Err: errNoMatch}
		}
		if !json.Valid(raw) {
			return ParseResult{Err: errNoMatch}
		}
		return decodeArtifact(scope, raw, descriptor)
	default:
		return ParseResult{Err: errNoMatch}
	}
}

func hasBundleKey(fields map[string]json.RawMessage) bool {
	for _, t := range models.AllArtifactTypes {
		if _, ok := fields[string(t)]; ok {
			return true
		}
	}
	return false
}

func hasAnyKey(fields map[string]json.RawMessage, keys ...string) bool {
	for _, k := range keys {
		if _, ok := fields[k]; ok {
			return true
		}
	}
	return false
}

func decodeBundle(fields map[string]json.RawMessage, descriptor models.CampaignDescriptor) ParseResult {
	bundle := &models.ContentBundle{}
	usable := false
	var firstErr error

	for _, t := range models.AllArtifactTypes {
		value, ok := fields[string(t)]
		if !ok {
			continue
		}
		res := decodeArtifact(t, value, descriptor)
		if res.Err != nil {
			if firstErr == nil && appErrors.IsParseError(res.Err) {
				firstErr = res.Err
			}
			continue
		}
		res.Patch.Apply(bundle)
		usable = true
	}

	if !usable {
		if firstErr != nil {
			return ParseResult{Err: firstErr}
		}
		return ParseResult{Err: appErrors.NewEmptyResultError("bundle response has no usable fields", nil)}
	}

	if bundle.Ebook.IsEmpty() {
		bundle.Ebook = models.EbookArtifact{Title: derivedTitle(descriptor)}
	}
	bundle.Normalize()
	return ParseResult{Bundle: bundle}
}

// decodeArtifact decodes one field value and reports EmptyResult when nothing usable remains.
func decodeArtifact(t models.ArtifactType, value json.RawMessage, descriptor models.CampaignDescriptor) ParseResult {
	var patch models.BundlePatch
	switch t {
	case models.ArtifactEbook:
		var w wireEbook
		if err := json.Unmarshal(value, &w); err != nil {
			return ParseResult{Err: appErrors.NewParseError("decode ebook", err)}
		}
		ebook := models.EbookArtifact{
			Title:    strings.TrimSpace(w.Title),
			Preview:  strings.TrimSpace(w.Preview),
			Chapters: nonBlankStrings(w.Chapters),
		}
		if ebook.IsEmpty() {
			return ParseResult{Err: appErrors.NewEmptyResultError("ebook is empty", nil)}
		}
		if ebook.Title == "" {
			ebook.Title = derivedTitle(descriptor)
		}
		if len(ebook.Chapters) == 0 {
			ebook.Chapters = append([]string{}, models.DefaultChapterSkeleton...)
		}
		patch.Ebook = &ebook

	case models.ArtifactSocialPosts:
		var groups []wireSocialGroup
		if err := json.Unmarshal(value, &groups); err != nil {
			return ParseResult{Err: appErrors.NewParseError("decode socialPosts", err)}
		}
		out := make([]models.SocialPlatformGroup, 0, len(groups))
		for _, g := range groups {
			posts := nonBlankStrings(g.Posts)
			if len(posts) == 0 {
				continue
			}
			platform := strings.TrimSpace(g.Platform)
			if platform == "" {
				platform = "General"
			}
			out = append(out, models.SocialPlatformGroup{Platform: platform, Posts: posts})
		}
		if len(out) == 0 {
			return ParseResult{Err: appErrors.NewEmptyResultError("socialPosts is empty", nil)}
		}
		patch.SocialPosts = out

	case models.ArtifactEmailFlow:
		var items []wireEmail
		if err := json.Unmarshal(value, &items); err != nil {
			return ParseResult{Err: appErrors.NewParseError("decode emailFlow", err)}
		}
		out := make([]models.EmailSequenceItem, 0, len(items))
		for _, it := range items {
			item := models.EmailSequenceItem{
				Type:    strings.TrimSpace(it.Type),
				Subject: strings.TrimSpace(it.Subject),
				Preview: strings.TrimSpace(firstNonEmpty(it.Preview, it.Body)),
			}
			if item.Subject == "" && item.Preview == "" {
				continue
			}
			if item.Type == "" {
				item.Type = "nurture"
			}
			out = append(out, item)
		}
		if len(out) == 0 {
			return ParseResult{Err: appErrors.NewEmptyResultError("emailFlow is empty", nil)}
		}
		patch.EmailFlow = out

	case models.ArtifactSdrEmails:
		var items []wireSdr
		if err := json.Unmarshal(value, &items); err != nil {
			return ParseResult{Err: appErrors.NewParseError("decode sdrEmails", err)}
		}
		out := make([]models.SdrSequenceItem, 0, len(items))
		for i, it := range items {
			item := models.SdrSequenceItem{
				Day:     int(it.Day),
				Subject: strings.TrimSpace(it.Subject),
				Body:    strings.TrimSpace(it.Body),
			}
			if item.Subject == "" && item.Body == "" {
				continue
			}
			if item.Day <= 0 {
				item.Day = i + 1
			}
			out = append(out, item)
		}
		if len(out) == 0 {
			return ParseResult{Err: appErrors.NewEmptyResultError("sdrEmails is empty", nil)}
		}
		patch.SdrEmails = out

	default:
		return ParseResult{Err: appErrors.NewValidationError(fmt.Sprintf("unknown artifact type %q", t), nil)}
	}
	return ParseResult{Patch: patch}
}

func parseHeuristic(text string, descriptor models.CampaignDescriptor, scope models.ArtifactType) ParseResult {
	text = strings.TrimSpace(text)
	if text == "" {
		return ParseResult{Err: appErrors.NewEmptyResultError("response text is empty", nil)}
	}

	bundle := heuristicBundle(text, descriptor)
	if scope == "" {
		return ParseResult{Bundle: bundle}
	}

	var patch models.BundlePatch
	switch scope {
	case models.ArtifactEbook:
		ebook := bundle.Ebook
		patch.Ebook = &ebook
	case models.ArtifactSocialPosts:
		patch.SocialPosts = bundle.SocialPosts
	case models.ArtifactEmailFlow:
		patch.EmailFlow = bundle.EmailFlow
	case models.ArtifactSdrEmails:
		patch.SdrEmails = bundle.SdrEmails
	default:
		return ParseResult{Err: appErrors.NewValidationError(fmt.Sprintf("unknown artifact type %q", scope), nil)}
	}
	return ParseResult{Patch: patch}
}

// heuristicBundle segments freeform text into a minimal bundle.
func heuristicBundle(text string, descriptor models.CampaignDescriptor) *models.ContentBundle {
	name := descriptor.WithDefaults().Name
	emailText := truncateRunes(text, heuristicEmailLen)
	return &models.ContentBundle{
		Ebook: models.EbookArtifact{
			Title:    derivedTitle(descriptor),
			Preview:  truncateRunes(text, heuristicPreviewLen),
			Chapters: append([]string{}, models.DefaultChapterSkeleton...),
		},
		SocialPosts: []models.SocialPlatformGroup{
			{Platform: "LinkedIn", Posts: []string{truncateRunes(text, heuristicPostLen)}},
		},
		EmailFlow: []models.EmailSequenceItem{
			{Type: "welcome", Subject: "Welcome to " + name, Preview: emailText},
		},
		SdrEmails: []models.SdrSequenceItem{
			{Day: 1, Subject: "Quick note about " + name, Body: emailText},
		},
	}
}

func derivedTitle(descriptor models.CampaignDescriptor) string {
	return descriptor.WithDefaults().Name + ": The Complete Guide"
}

// truncateRunes cuts s to n characters, appending "..." when something was cut.
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:n])) + "..."
}

func nonBlankStrings(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

type wireEbook struct {
	Title    string      `json:"title"`
	Preview  string      `json:"preview"`
	Chapters flexStrings `json:"chapters"`
}

type wireSocialGroup struct {
	Platform string      `json:"platform"`
	Posts    flexStrings `json:"posts"`
}

type wireEmail struct {
	Type    string `json:"type"`
	Subject string `json:"subject"`
	Preview string `json:"preview"`
	Body    string `json:"body"`
}

type wireSdr struct {
	Day     flexInt `json:"day"`
	Subject string  `json:"subject"`
	Body    string  `json:"body"`
}

// flexStrings accepts a string, an array of strings, or an array of
// {title|content|text} objects.
type flexStrings []string

func (f *flexStrings) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*f = flexStrings{single}
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(flexStrings, 0, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Title   string `json:"title"`
			Content string `json:"content"`
			Text    string `json:"text"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		out = append(out, firstNonEmpty(obj.Title, obj.Content, obj.Text))
	}
	*f = out
	return nil
}

// flexInt accepts a number or a numeric string such as "3" or "Day 3".
type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = flexInt(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	digits := strings.TrimFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if digits == "" {
		*f = 0
		return nil
	}
	v, err := strconv.Atoi(digits)
	if err != nil {
		return err
	}
	*f = flexInt(v)
	return nil
}
