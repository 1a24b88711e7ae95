// internal/models/scope.go
package models

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Scope addresses one editable unit of a bundle: the whole ebook,
// or one element of the social, email or SDR collections.
type Scope struct {
	Kind  ArtifactType `json:"kind"`
	Index int          `json:"index"`
}

// EbookScope is the only whole-object scope.
var EbookScope = Scope{Kind: ArtifactEbook}

// SocialScope addresses socialPosts[groupIndex].
func SocialScope(groupIndex int) Scope { return Scope{Kind: ArtifactSocialPosts, Index: groupIndex} }

// EmailScope addresses emailFlow[index].
func EmailScope(index int) Scope { return Scope{Kind: ArtifactEmailFlow, Index: index} }

// SdrScope addresses sdrEmails[index].
func SdrScope(index int) Scope { return Scope{Kind: ArtifactSdrEmails, Index: index} }

// Indexed reports whether the scope addresses a collection element.
func (s Scope) Indexed() bool {
	return s.Kind != ArtifactEbook
}

func (s Scope) String() string {
	if !s.Indexed() {
		return string(s.Kind)
	}
	return fmt.Sprintf("%s[%d]", s.Kind, s.Index)
}

// ItemScope addresses the sub-collection that AddItem/RemoveItem operate on:
// ebook.chapters or socialPosts[i].posts.
type ItemScope struct {
	Scope
	Collection string `json:"collection"`
}

func (s ItemScope) String() string {
	return s.Scope.String() + "." + s.Collection
}

// ChaptersScope is ebook.chapters.
var ChaptersScope = ItemScope{Scope: EbookScope, Collection: "chapters"}

// PostsScope is socialPosts[groupIndex].posts.
func PostsScope(groupIndex int) ItemScope {
	return ItemScope{Scope: SocialScope(groupIndex), Collection: "posts"}
}

var scopePattern = regexp.MustCompile(`^([A-Za-z]+)(?:\[(\d+)\])?(?:\.([A-Za-z]+))?$`)

// ParseScope parses "ebook", "socialPosts[1]", "emailFlow[0]" or "sdrEmails[2]".
func ParseScope(raw string) (Scope, error) {
	scope, collection, err := parseScopeParts(raw)
	if err != nil {
		return Scope{}, err
	}
	if collection != "" {
		return Scope{}, fmt.Errorf("scope %q addresses a sub-collection", raw)
	}
	return scope, nil
}

// ParseItemScope parses "ebook.chapters" or "socialPosts[1].posts".
func ParseItemScope(raw string) (ItemScope, error) {
	scope, collection, err := parseScopeParts(raw)
	if err != nil {
		return ItemScope{}, err
	}
	switch {
	case scope.Kind == ArtifactEbook && collection == "chapters":
	case scope.Kind == ArtifactSocialPosts && collection == "posts":
	default:
		return ItemScope{}, fmt.Errorf("scope %q has no item collection", raw)
	}
	return ItemScope{Scope: scope, Collection: collection}, nil
}

func parseScopeParts(raw string) (Scope, string, error) {
	m := scopePattern.FindStringSubmatch(strings.TrimSpace(raw))
	if m == nil {
		return Scope{}, "", fmt.Errorf("malformed scope %q", raw)
	}
	kind, err := ParseArtifactType(m[1])
	if err != nil {
		return Scope{}, "", err
	}
	scope := Scope{Kind: kind}
	if kind == ArtifactEbook {
		if m[2] != "" {
			return Scope{}, "", fmt.Errorf("scope %q: ebook is not indexed", raw)
		}
	} else {
		if m[2] == "" {
			return Scope{}, "", fmt.Errorf("scope %q requires an index", raw)
		}
		idx, err := strconv.Atoi(m[2])
		if err != nil {
			return Scope{}, "", fmt.Errorf("scope %q: %w", raw, err)
		}
		scope.Index = idx
	}
	return scope, m[3], nil
}
