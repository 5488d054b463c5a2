package api

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hackit-tw/recruit/internal/domain/model"
)

//go:embed fieldmap.yaml
var defaultFieldMap []byte

// FieldMap maps form field ids to application attributes.
type FieldMap struct {
	Applicant struct {
		Name         string   `yaml:"name"`
		Email        string   `yaml:"email"`
		Phone        string   `yaml:"phone"`
		SchoolStage  string   `yaml:"school_stage"`
		City         string   `yaml:"city"`
		Teams        string   `yaml:"teams"`
		TeamOrder    string   `yaml:"team_order"`
		Introduction []string `yaml:"introduction"`
	} `yaml:"applicant"`
	ApplicantData struct {
		Nickname         string `yaml:"nickname"`
		School           string `yaml:"school"`
		EmergencyContact string `yaml:"emergency_contact"`
	} `yaml:"applicant_data"`
	Choices map[string]string `yaml:"choices"`
}

// ParseFieldMap decodes a YAML field map.
func ParseFieldMap(b []byte) (FieldMap, error) {
	var fm FieldMap
	if err := yaml.Unmarshal(b, &fm); err != nil {
		return FieldMap{}, fmt.Errorf("%w: %w", ErrFieldMap, err)
	}
	if fm.Applicant.Name == "" || fm.Applicant.Email == "" {
		return FieldMap{}, fmt.Errorf("%w: applicant name and email ids are required", ErrFieldMap)
	}
	return fm, nil
}

// LoadFieldMap reads a field map file.
func LoadFieldMap(path string) (FieldMap, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return FieldMap{}, fmt.Errorf("%w: %w", ErrFieldMap, err)
	}
	return ParseFieldMap(b)
}

// DefaultFieldMap returns the embedded mapping.
func DefaultFieldMap() FieldMap {
	fm, err := ParseFieldMap(defaultFieldMap)
	if err != nil {
		panic(err)
	}
	return fm
}

// formPayload is the webhook body of the form provider.
type formPayload struct {
	Answers []formAnswer `json:"answers"`
}

type formAnswer struct {
	ID    string          `json:"id"`
	Value json.RawMessage `json:"value"`
}

// values decodes an answer into plain strings. Choice answers arrive as
// {"value": ["<choice id>", ...]} and are translated through the map.
func (fm FieldMap) values(raw json.RawMessage) []string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return []string{s}
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err != nil {
		var choice struct {
			Value []string `json:"value"`
		}
		if err := json.Unmarshal(raw, &choice); err != nil {
			return nil
		}
		list = choice.Value
	}
	out := make([]string, 0, len(list))
	for _, id := range list {
		if label, ok := fm.Choices[id]; ok {
			id = label
		}
		out = append(out, id)
	}
	return out
}

func (fm FieldMap) index(p formPayload) map[string][]string {
	out := make(map[string][]string, len(p.Answers))
	for _, a := range p.Answers {
		out[a.ID] = fm.values(a.Value)
	}
	return out
}

func first(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

// rankTeams orders the chosen teams by the applicant's ranking. Teams the
// ranking leaves out keep their form order after the ranked ones. With no
// teams chosen the ranking itself is the choice.
func rankTeams(teams, ranking []string) []string {
	if len(ranking) == 0 {
		return teams
	}
	if len(teams) == 0 {
		return ranking
	}
	chosen := make(map[string]bool, len(teams))
	for _, t := range teams {
		chosen[t] = true
	}
	out := make([]string, 0, len(teams))
	for _, t := range ranking {
		if chosen[t] {
			out = append(out, t)
			delete(chosen, t)
		}
	}
	for _, t := range teams {
		if chosen[t] {
			out = append(out, t)
			delete(chosen, t)
		}
	}
	return out
}

// applicantFrom builds the intake form data. Validation is left to the service.
func (fm FieldMap) applicantFrom(p formPayload) model.Applicant {
	got := fm.index(p)
	f := fm.Applicant
	var intro []string
	for _, id := range f.Introduction {
		if v := strings.TrimSpace(strings.Join(got[id], ", ")); v != "" {
			intro = append(intro, v)
		}
	}
	return model.Applicant{
		Name:         first(got[f.Name]),
		Email:        first(got[f.Email]),
		Phone:        first(got[f.Phone]),
		SchoolStage:  first(got[f.SchoolStage]),
		City:         first(got[f.City]),
		Teams:        rankTeams(got[f.Teams], got[f.TeamOrder]),
		Introduction: strings.Join(intro, "\n\n"),
	}
}

func (fm FieldMap) applicantDataFrom(p formPayload) model.ApplicantData {
	got := fm.index(p)
	f := fm.ApplicantData
	return model.ApplicantData{
		Nickname:         first(got[f.Nickname]),
		School:           first(got[f.School]),
		EmergencyContact: strings.Join(got[f.EmergencyContact], ", "),
	}
}
