package category

import "strings"

// Other is the category given to channels without a usable group.
const Other = "Other"

// Category is a display label with the substrings that select it.
type Category struct {
	Label   string
	Aliases []string
}

// defaultCategories is ordered: when a group matches several entries the
// earliest one wins.
var defaultCategories = []Category{
	{Label: "LATINO CINEMA", Aliases: []string{"latino", "latin", "latam", "latino cinema", "cine latino"}},
	{Label: "Univisión/Unimas/Telemundo", Aliases: []string{"univision", "uni vision", "unimas", "uni mas", "telemundo"}},
	{Label: "SPAIN", Aliases: []string{"spain", "españa", "espana", "spanish spain"}},
	{Label: "Dominican Republic", Aliases: []string{"dominican", "dominicana", "rd", "republica dominicana"}},
	{Label: "ECUADOR", Aliases: []string{"ecuador", "ec"}},
	{Label: "PERU", Aliases: []string{"peru", "pe"}},
	{Label: "ARGENTINA", Aliases: []string{"argentina", "ar"}},
	{Label: "BRAZIL", Aliases: []string{"brazil", "brasil", "br"}},
	{Label: "AFRICA", Aliases: []string{"africa", "afr", "african"}},
	{Label: "Caribbean", Aliases: []string{"caribbean", "caribe"}},
	{Label: "COLOMBIA", Aliases: []string{"colombia", "co"}},
	{Label: "GERMANY", Aliases: []string{"germany", "deutsch", "de"}},
	{Label: "ITALY", Aliases: []string{"italy", "italia", "it"}},
	{Label: "INDIAN | PUNJABI", Aliases: []string{"india", "indian", "hindi", "punjabi", "in"}},
}

// Mapper resolves raw group strings against an ordered category table.
type Mapper struct {
	categories []Category
	labels     []string // normalized labels, parallel to categories
}

// NewMapper builds a Mapper over categories. Order matters: the first
// matching category wins.
func NewMapper(categories []Category) *Mapper {
	m := &Mapper{
		categories: make([]Category, len(categories)),
		labels:     make([]string, len(categories)),
	}
	for i, c := range categories {
		m.categories[i] = Category{Label: c.Label, Aliases: append([]string(nil), c.Aliases...)}
		m.labels[i] = Normalize(c.Label)
	}
	return m
}

var defaultMapper = NewMapper(defaultCategories)

// Default returns the Mapper over the built-in category table.
func Default() *Mapper { return defaultMapper }

// Allowed returns the built-in category labels in match order.
func Allowed() []string { return defaultMapper.Labels() }

// MapGroup resolves raw with the built-in table.
func MapGroup(raw string) []string { return defaultMapper.Map(raw) }

// Labels returns the category labels in match order.
func (m *Mapper) Labels() []string {
	out := make([]string, len(m.categories))
	for i, c := range m.categories {
		out[i] = c.Label
	}
	return out
}

// Map splits raw on ';' and resolves every token to a category label.
// Tokens that match nothing are kept as their own trimmed text. The result is
// deduplicated in first-seen order and never empty.
func (m *Mapper) Map(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{Other}
	}
	var out []string
	seen := make(map[string]struct{})
	add := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		out = append(out, label)
	}
	for _, token := range strings.Split(raw, ";") {
		g := Normalize(token)
		if g == "" {
			continue
		}
		if label, ok := m.match(g); ok {
			add(label)
			continue
		}
		if clean := strings.TrimSpace(token); clean != "" {
			add(clean)
		}
	}
	if len(out) == 0 {
		return []string{Other}
	}
	return out
}

// match checks categories in order; an alias contained in g or an exact
// label match selects the category.
func (m *Mapper) match(g string) (string, bool) {
	for i, c := range m.categories {
		for _, a := range c.Aliases {
			if strings.Contains(g, a) {
				return c.Label, true
			}
		}
		if m.labels[i] == g {
			return c.Label, true
		}
	}
	return "", false
}
