// Package roster maps subjects to the teachers who can take them and
// teachers to their email addresses.
package roster

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"
)

// Subject lists the teachers for one subject in priority order.
type Subject struct {
	Name     string   `yaml:"name"`
	Teachers []string `yaml:"teachers"`
}

// Teacher is a roster contact entry.
type Teacher struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
}

type file struct {
	Subjects []Subject `yaml:"subjects"`
	Teachers []Teacher `yaml:"teachers"`
}

// Roster is immutable once built and safe for concurrent use.
type Roster struct {
	subjects []Subject
	emails   map[string]string
	admin    string
}

// defaultSubjects is used when no roster file is configured.
var defaultSubjects = []Subject{
	{Name: "Hindi", Teachers: []string{"Bharti Ma'am"}},
	{Name: "Mathematics", Teachers: []string{"Vivek Sir"}},
	{Name: "GK", Teachers: []string{"Dakshika", "Ishita"}},
	{Name: "SST", Teachers: []string{"Ishita", "Shivangi"}},
	{Name: "Science", Teachers: []string{"Kalpana Ma'am", "Payal", "Sneha"}},
	{Name: "English", Teachers: []string{"Aparajita", "Deepanshi", "Megha"}},
	{Name: "Pre Primary", Teachers: []string{"Yaindrila Ma'am"}},
	{Name: "EVS", Teachers: []string{"Yaindrila Ma'am", "Kalpana Ma'am"}},
	{Name: "Computer", Teachers: []string{"Arpit", "Geetanjali"}},
}

// Default returns the built-in subject map with no teacher addresses, so
// every teacher notification goes to admin.
func Default(admin string) *Roster {
	r, _ := build(file{Subjects: defaultSubjects}, admin)
	return r
}

// Load reads a YAML roster from path.
func Load(path, admin string) (*Roster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roster: %w", err)
	}
	return Parse(data, admin)
}

// Parse decodes a YAML roster:
//
//	subjects:
//	  - name: Science
//	    teachers: ["Kalpana Ma'am", Payal]
//	teachers:
//	  - name: Payal
//	    email: payal@example.com
func Parse(data []byte, admin string) (*Roster, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roster: %w", err)
	}
	return build(f, admin)
}

func build(f file, admin string) (*Roster, error) {
	r := &Roster{emails: make(map[string]string), admin: strings.TrimSpace(admin)}

	seen := make(map[string]bool)
	for _, s := range f.Subjects {
		name := strings.TrimSpace(s.Name)
		if name == "" {
			return nil, errors.New("roster: subject with empty name")
		}
		if seen[name] {
			return nil, fmt.Errorf("roster: subject %q listed twice", name)
		}
		seen[name] = true

		var teachers []string
		for _, t := range s.Teachers {
			if t = strings.TrimSpace(t); t != "" {
				teachers = append(teachers, t)
			}
		}
		r.subjects = append(r.subjects, Subject{Name: name, Teachers: teachers})
	}

	for _, t := range f.Teachers {
		if strings.TrimSpace(t.Name) == "" {
			return nil, errors.New("roster: teacher entry with empty name")
		}
		r.emails[teacherKey(t.Name)] = strings.TrimSpace(t.Email)
	}
	return r, nil
}

// teacherKey normalises a display name: "Bharti Ma'am" and "BHARTI MA'AM"
// share the key "BHARTIMA'AM".
func teacherKey(name string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(name), " ", ""))
}

// Subjects returns the subject names in roster order.
func (r *Roster) Subjects() []string {
	out := make([]string, len(r.subjects))
	for i, s := range r.subjects {
		out[i] = s.Name
	}
	return out
}

// CandidatesForSubject returns the teachers for subject, first choice
// first. Unknown subjects have no candidates.
func (r *Roster) CandidatesForSubject(subject string) []string {
	subject = strings.TrimSpace(subject)
	for _, s := range r.subjects {
		if s.Name == subject {
			return slices.Clone(s.Teachers)
		}
	}
	return nil
}

// Teachers returns every teacher named anywhere in the roster, sorted.
func (r *Roster) Teachers() []string {
	var out []string
	for _, s := range r.subjects {
		for _, t := range s.Teachers {
			if !slices.Contains(out, t) {
				out = append(out, t)
			}
		}
	}
	slices.Sort(out)
	return out
}

// EmailFor returns the teacher's address, or the admin address when the
// teacher has none.
func (r *Roster) EmailFor(teacher string) string {
	if e := r.emails[teacherKey(teacher)]; e != "" {
		return e
	}
	return r.admin
}

// AdminEmail returns the admin address, possibly empty.
func (r *Roster) AdminEmail() string {
	return r.admin
}
