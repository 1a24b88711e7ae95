// internal/models/campaign.go
package models

import (
	"encoding/json"
	"strings"
)

// CampaignDescriptor is the campaign input collected by the intake forms.
type CampaignDescriptor struct {
	Name           string   `json:"name" yaml:"name"`
	Type           string   `json:"type" yaml:"type"`
	Goal           string   `json:"goal" yaml:"goal"`
	TargetAudience string   `json:"targetAudience" yaml:"targetAudience"`
	KeyMessages    []string `json:"keyMessages" yaml:"keyMessages"`
	Channels       []string `json:"channels" yaml:"channels"`
}

// ExampleDescriptor supplies defaults for absent descriptor fields.
var ExampleDescriptor = CampaignDescriptor{
	Name:           "Q3 Product Launch",
	Type:           "Product Launch",
	Goal:           "Generate qualified leads for the new analytics platform",
	TargetAudience: "Marketing directors at mid-size B2B SaaS companies",
	KeyMessages: []string{
		"Unify campaign data in one dashboard",
		"Cut reporting time in half",
		"Prove marketing ROI to leadership",
	},
	Channels: []string{"LinkedIn", "Twitter", "Email"},
}

// WithDefaults fills every absent field from ExampleDescriptor.
func (d CampaignDescriptor) WithDefaults() CampaignDescriptor {
	def := ExampleDescriptor
	if strings.TrimSpace(d.Name) == "" {
		d.Name = def.Name
	}
	if strings.TrimSpace(d.Type) == "" {
		d.Type = def.Type
	}
	if strings.TrimSpace(d.Goal) == "" {
		d.Goal = def.Goal
	}
	if strings.TrimSpace(d.TargetAudience) == "" {
		d.TargetAudience = def.TargetAudience
	}
	if len(d.KeyMessages) == 0 {
		d.KeyMessages = append([]string{}, def.KeyMessages...)
	}
	if len(d.Channels) == 0 {
		d.Channels = append([]string{}, def.Channels...)
	}
	return d
}

// Serialize renders the descriptor as the content string sent to the generation service.
func (d CampaignDescriptor) Serialize() string {
	data, err := json.Marshal(d)
	if err != nil {
		return d.Name
	}
	return string(data)
}
