// Package catalog はウェルネス体験・ドリンク・ヨット体験のカタログを提供する。
// 既定のカタログはバイナリに埋め込み、CATALOG_PATHで差し替えられる。
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Wellness はウェルネス体験。DurationMinutesが0のものは予約枠を持たない。
type Wellness struct {
	Name            string `yaml:"name" json:"name"`
	DurationMinutes int    `yaml:"duration_minutes" json:"durationMinutes,omitempty"`
	Price           int    `yaml:"price" json:"price"`
	Description     string `yaml:"description" json:"description"`
}

// Drink はドリンクメニュー。
type Drink struct {
	Name        string `yaml:"name" json:"name"`
	Price       int    `yaml:"price" json:"price"`
	Description string `yaml:"description" json:"description"`
}

// Yacht は曜日ごとに開催されるヨット体験。
type Yacht struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Weekdays []string `yaml:"weekdays" json:"weekdays"`
	Start    string   `yaml:"start" json:"start"`
	End      string   `yaml:"end" json:"end"`
	Includes []string `yaml:"includes" json:"includes"`
}

// Catalog はカタログ全体。
type Catalog struct {
	Currency string     `yaml:"currency" json:"currency"`
	Wellness []Wellness `yaml:"wellness" json:"wellness"`
	Drinks   []Drink    `yaml:"drinks" json:"drinks"`
	Yacht    []Yacht    `yaml:"yacht" json:"yacht"`
}

// Load はカタログを読み込む。pathが空の場合は埋め込みの既定カタログを使う。
func Load(path string) (*Catalog, error) {
	data := defaultCatalog
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
		}
		data = b
	}
	return Parse(data)
}

// Parse はYAMLからカタログを生成し、内容を検証する。
func Parse(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func (c *Catalog) validate() error {
	if len(c.Wellness) == 0 {
		return fmt.Errorf("catalog has no wellness experiences")
	}
	seen := make(map[time.Weekday]string)
	for _, y := range c.Yacht {
		if _, err := clock(y.Start); err != nil {
			return fmt.Errorf("yacht %s: %w", y.ID, err)
		}
		if _, err := clock(y.End); err != nil {
			return fmt.Errorf("yacht %s: %w", y.ID, err)
		}
		for _, d := range y.Weekdays {
			wd, ok := weekdays[strings.ToLower(d)]
			if !ok {
				return fmt.Errorf("yacht %s: unknown weekday %q", y.ID, d)
			}
			if other, dup := seen[wd]; dup {
				return fmt.Errorf("yacht %s and %s both run on %s", other, y.ID, wd)
			}
			seen[wd] = y.ID
		}
	}
	return nil
}

// FindWellness は名前（大文字小文字を区別しない）でウェルネス体験を探す。
func (c *Catalog) FindWellness(name string) (Wellness, bool) {
	for _, w := range c.Wellness {
		if strings.EqualFold(w.Name, strings.TrimSpace(name)) {
			return w, true
		}
	}
	return Wellness{}, false
}

// FindDrink は名前（大文字小文字を区別しない）でドリンクを探す。
func (c *Catalog) FindDrink(name string) (Drink, bool) {
	for _, d := range c.Drinks {
		if strings.EqualFold(d.Name, strings.TrimSpace(name)) {
			return d, true
		}
	}
	return Drink{}, false
}

// YachtFor は指定曜日に開催されるヨット体験を返す。
func (c *Catalog) YachtFor(day time.Weekday) (Yacht, bool) {
	for _, y := range c.Yacht {
		for _, d := range y.Weekdays {
			if weekdays[strings.ToLower(d)] == day {
				return y, true
			}
		}
	}
	return Yacht{}, false
}

// TimeLabel はヨット体験の開催時間を「6:00 AM - 9:00 AM」形式で返す。
func (y Yacht) TimeLabel() string {
	start, _ := clock(y.Start)
	end, _ := clock(y.End)
	return start.Format("3:04 PM") + " - " + end.Format("3:04 PM")
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

func clock(s string) (time.Time, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid clock time %q", s)
	}
	return t, nil
}
