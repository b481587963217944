package curriculum

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/mod/semver"
	"gopkg.in/yaml.v3"
)

// Curriculum is the quota table of one product at one version. It is loaded
// data: adding a product or section is a file change, never a code change.
type Curriculum struct {
	Product         string                `yaml:"product"`
	Version         string                `yaml:"version"`
	DifficultyBands map[Difficulty]string `yaml:"difficulties"`
	Modes           []Mode                `yaml:"modes"`
}

// Parse decodes and validates a curriculum document.
func Parse(data []byte) (*Curriculum, error) {
	var c Curriculum
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, eris.Wrap(err, "decode curriculum")
	}
	c.Version = canonicalVersion(c.Version)
	if c.DifficultyBands == nil {
		c.DifficultyBands = make(map[Difficulty]string, len(defaultBands))
	}
	for d, band := range defaultBands {
		if strings.TrimSpace(c.DifficultyBands[d]) == "" {
			c.DifficultyBands[d] = band
		}
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Load reads and validates a curriculum file.
func Load(path string) (*Curriculum, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "read curriculum %s", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, eris.Wrapf(err, "load curriculum %s", path)
	}
	return c, nil
}

// canonicalVersion adds the "v" prefix semver comparison expects.
func canonicalVersion(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return "v0.0.0"
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

// Validate performs all structural checks and returns a combined error
// describing every problem found.
func (c *Curriculum) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Product) == "" {
		errs = append(errs, "product is required")
	}
	if !semver.IsValid(c.Version) {
		errs = append(errs, fmt.Sprintf("invalid version %q", c.Version))
	}
	for d := range c.DifficultyBands {
		if !d.Valid() {
			errs = append(errs, fmt.Sprintf("unknown difficulty %d in difficulty bands", d))
		}
	}
	if len(c.Modes) == 0 {
		errs = append(errs, "at least one test mode is required")
	}

	modes := make(map[string]bool)
	for _, m := range c.Modes {
		if m.Name == "" {
			errs = append(errs, "test mode without a name")
		}
		if modes[m.Name] {
			errs = append(errs, fmt.Sprintf("duplicate test mode %q", m.Name))
		}
		modes[m.Name] = true

		sections := make(map[string]bool)
		for _, s := range m.Sections {
			where := m.Name + "/" + s.Name
			if s.Name == "" {
				errs = append(errs, fmt.Sprintf("%s: section without a name", m.Name))
			}
			if sections[s.Name] {
				errs = append(errs, fmt.Sprintf("%s: duplicate section", where))
			}
			sections[s.Name] = true
			if len(s.SubSkills) == 0 {
				errs = append(errs, fmt.Sprintf("%s: section has no sub-skills", where))
			}

			names := make(map[string]bool)
			for _, sk := range s.SubSkills {
				errs = append(errs, validateSubSkill(where, sk, names)...)
			}
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("curriculum %s %s: %s", c.Product, c.Version, strings.Join(errs, "; "))
	}
	return nil
}

func validateSubSkill(where string, sk SubSkill, seen map[string]bool) []string {
	var errs []string
	if strings.TrimSpace(sk.Name) == "" {
		return append(errs, fmt.Sprintf("%s: sub-skill without a name", where))
	}
	if seen[sk.Name] {
		errs = append(errs, fmt.Sprintf("%s: duplicate sub-skill %q", where, sk.Name))
	}
	seen[sk.Name] = true

	for _, d := range Difficulties() {
		n, ok := sk.Quota[d]
		if !ok {
			errs = append(errs, fmt.Sprintf("%s/%s: missing quota for difficulty %d", where, sk.Name, d))
			continue
		}
		if n < 0 {
			errs = append(errs, fmt.Sprintf("%s/%s: negative quota %d for difficulty %d", where, sk.Name, n, d))
		}
	}
	for d := range sk.Quota {
		if !d.Valid() {
			errs = append(errs, fmt.Sprintf("%s/%s: unknown difficulty %d", where, sk.Name, d))
		}
	}
	if sk.Visual.Required && !visualKinds[sk.Visual.Kind] {
		errs = append(errs, fmt.Sprintf("%s/%s: visual kind must be diagram, chart or pattern, got %q", where, sk.Name, sk.Visual.Kind))
	}
	return errs
}

// Mode returns the named test mode.
func (c *Curriculum) Mode(name string) (*Mode, bool) {
	for i := range c.Modes {
		if c.Modes[i].Name == name {
			return &c.Modes[i], true
		}
	}
	return nil, false
}

// Section returns the named section of a test mode.
func (c *Curriculum) Section(mode, section string) (*Section, bool) {
	m, ok := c.Mode(mode)
	if !ok {
		return nil, false
	}
	for i := range m.Sections {
		if m.Sections[i].Name == section {
			return &m.Sections[i], true
		}
	}
	return nil, false
}

// SubSkill returns a sub-skill addressed by cell key.
func (c *Curriculum) SubSkill(key CellKey) (SubSkill, bool) {
	s, ok := c.Section(key.TestMode, key.Section)
	if !ok {
		return SubSkill{}, false
	}
	return s.SubSkill(key.SubSkill)
}

// Band returns the descriptive band of a difficulty.
func (c *Curriculum) Band(d Difficulty) string {
	if b, ok := c.DifficultyBands[d]; ok {
		return b
	}
	return defaultBands[d]
}

// Cells returns the quota cells of a test mode in curriculum order: section
// order, then sub-skill order, then difficulty order.
func (c *Curriculum) Cells(mode string) ([]QuotaCell, error) {
	m, ok := c.Mode(mode)
	if !ok {
		return nil, eris.Errorf("product %s has no test mode %q", c.Product, mode)
	}

	var cells []QuotaCell
	for _, s := range m.Sections {
		for _, sk := range s.SubSkills {
			for _, d := range Difficulties() {
				cells = append(cells, QuotaCell{
					CellKey: CellKey{
						Product:    c.Product,
						TestMode:   m.Name,
						Section:    s.Name,
						SubSkill:   sk.Name,
						Difficulty: d,
					},
					Required: sk.Quota[d],
				})
			}
		}
	}
	return cells, nil
}

// Catalog holds the active curriculum of every product.
type Catalog struct {
	byProduct map[string]*Curriculum
}

// NewCatalog builds a catalog, keeping the highest version per product.
func NewCatalog(curricula ...*Curriculum) *Catalog {
	cat := &Catalog{byProduct: make(map[string]*Curriculum)}
	for _, c := range curricula {
		cur, ok := cat.byProduct[c.Product]
		if !ok {
			cat.byProduct[c.Product] = c
			continue
		}
		newer, older := c, cur
		if semver.Compare(c.Version, cur.Version) <= 0 {
			newer, older = cur, c
		}
		zap.L().Info("Curriculum version superseded",
			zap.String("product", c.Product),
			zap.String("active", newer.Version),
			zap.String("superseded", older.Version),
		)
		cat.byProduct[c.Product] = newer
	}
	return cat
}

// LoadPath loads a single curriculum file or every *.yaml / *.yml file of a
// directory.
func LoadPath(path string) (*Catalog, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, eris.Wrapf(err, "stat curriculum path %s", path)
	}
	if info.IsDir() {
		return LoadDir(path)
	}
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	return NewCatalog(c), nil
}

// LoadDir loads every curriculum file of dir. When several files describe the
// same product, the highest semantic version wins.
func LoadDir(dir string) (*Catalog, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "read curriculum dir %s", dir)
	}

	var curricula []*Curriculum
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if e.IsDir() || (ext != ".yaml" && ext != ".yml") {
			continue
		}
		c, err := Load(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		curricula = append(curricula, c)
	}
	if len(curricula) == 0 {
		return nil, eris.Errorf("no curriculum files in %s", dir)
	}
	return NewCatalog(curricula...), nil
}

// Products returns the product names in sorted order.
func (c *Catalog) Products() []string {
	out := make([]string, 0, len(c.byProduct))
	for p := range c.byProduct {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// Get returns the active curriculum of a product.
func (c *Catalog) Get(product string) (*Curriculum, error) {
	cur, ok := c.byProduct[product]
	if !ok {
		return nil, eris.Errorf("unknown product %q", product)
	}
	return cur, nil
}

// Cells returns the quota cells of a product and test mode.
func (c *Catalog) Cells(product, mode string) ([]QuotaCell, error) {
	cur, err := c.Get(product)
	if err != nil {
		return nil, err
	}
	return cur.Cells(mode)
}
