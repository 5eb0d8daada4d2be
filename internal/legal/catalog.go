// Package legal holds the terms, privacy notice, warranty and clause text that
// agreements freeze at signing time.
package legal

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/SchmitzMichael2018/myhomebro-sub000/internal/models"
)

//go:embed catalog.yaml
var embedded []byte

// Clause is one titled section of the agreement body.
type Clause struct {
	Title string `yaml:"title" json:"title"`
	Body  string `yaml:"body" json:"body"`
}

// Catalog is the parsed legal text plus the version it hashes to.
type Catalog struct {
	Release         string     `yaml:"release"`
	Terms           string     `yaml:"terms"`
	Privacy         string     `yaml:"privacy"`
	DefaultWarranty string     `yaml:"default_warranty"`
	Clauses         []Clause   `yaml:"clauses"`
	CoolingOff      coolingOff `yaml:"cooling_off"`

	version string
}

type coolingOff struct {
	Default string            `yaml:"default"`
	States  map[string]string `yaml:"states"`
}

// Snapshot is the text frozen onto an agreement.
type Snapshot struct {
	Terms    string
	Privacy  string
	Warranty string
	Clauses  []Clause
	Version  string
}

// Default parses the embedded catalog.
func Default() (*Catalog, error) {
	return Parse(embedded)
}

// Parse unmarshals YAML bytes into a validated Catalog.
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("legal: parse: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	c.version = c.Release + "+" + hex.EncodeToString(sum[:])[:12]
	return &c, nil
}

func (c *Catalog) validate() error {
	var errs []string
	if c.Release == "" {
		errs = append(errs, "release is required")
	}
	if strings.TrimSpace(c.Terms) == "" {
		errs = append(errs, "terms are required")
	}
	if strings.TrimSpace(c.DefaultWarranty) == "" {
		errs = append(errs, "default_warranty is required")
	}
	if strings.TrimSpace(c.CoolingOff.Default) == "" {
		errs = append(errs, "cooling_off.default is required")
	}
	for i, cl := range c.Clauses {
		if cl.Title == "" || strings.TrimSpace(cl.Body) == "" {
			errs = append(errs, fmt.Sprintf("clauses[%d]: title and body are required", i))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("legal: invalid catalog: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Version identifies the exact catalog text.
func (c *Catalog) Version() string {
	return c.version
}

// CoolingOffClause returns the cancellation text for a governing state.
func (c *Catalog) CoolingOffClause(state string) string {
	if text, ok := c.CoolingOff.States[strings.ToUpper(strings.TrimSpace(state))]; ok {
		return strings.TrimSpace(text)
	}
	return strings.TrimSpace(c.CoolingOff.Default)
}

// ClausesFor returns the clause set of an agreement governed by state, the
// cooling-off clause last.
func (c *Catalog) ClausesFor(state string) []Clause {
	out := make([]Clause, 0, len(c.Clauses)+1)
	for _, cl := range c.Clauses {
		out = append(out, Clause{Title: cl.Title, Body: strings.TrimSpace(cl.Body)})
	}
	return append(out, Clause{Title: "Right to cancel", Body: c.CoolingOffClause(state)})
}

// WarrantyText returns the custom text for custom warranties and the default otherwise.
func (c *Catalog) WarrantyText(warrantyType, custom string) string {
	if warrantyType == models.WarrantyCustom && strings.TrimSpace(custom) != "" {
		return strings.TrimSpace(custom)
	}
	return strings.TrimSpace(c.DefaultWarranty)
}

// SnapshotFor freezes the text that applies to a.
func (c *Catalog) SnapshotFor(a *models.Agreement) Snapshot {
	return Snapshot{
		Terms:    strings.TrimSpace(c.Terms),
		Privacy:  strings.TrimSpace(c.Privacy),
		Warranty: c.WarrantyText(a.WarrantyType, a.CustomWarrantyText),
		Clauses:  c.ClausesFor(a.GoverningState),
		Version:  c.version,
	}
}

// Apply writes the snapshot onto a unless it already carries one.
func (s Snapshot) Apply(a *models.Agreement) {
	if !a.NeedsLegalSnapshot() {
		return
	}
	a.TermsSnapshot = s.Terms
	a.PrivacySnapshot = s.Privacy
	a.WarrantySnapshot = s.Warranty
	if data, err := json.Marshal(s.Clauses); err == nil {
		a.ClausesSnapshot = string(data)
	}
	a.LegalVersion = s.Version
}

// ClausesOf returns the clauses frozen onto a at signing, or the live clause
// set while a has no snapshot.
func (c *Catalog) ClausesOf(a *models.Agreement) ([]Clause, error) {
	if a.ClausesSnapshot == "" {
		return c.ClausesFor(a.GoverningState), nil
	}
	var out []Clause
	if err := json.Unmarshal([]byte(a.ClausesSnapshot), &out); err != nil {
		return nil, fmt.Errorf("legal: decode clauses snapshot of %s: %w", a.ID, err)
	}
	return out, nil
}
