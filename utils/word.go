package utils

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"baliance.com/gooxml/document"

	"formautofill/models"
)

// ProfileDocument lays a profile out as a Word document.
func ProfileDocument(p *models.Profile) *document.Document {
	doc := document.New()

	heading := func(text string) {
		run := doc.AddParagraph().AddRun()
		run.Properties().SetBold(true)
		run.AddText(text)
	}
	line := func(text string) {
		doc.AddParagraph().AddRun().AddText(text)
	}

	heading(p.Name)

	heading("Personal Information")
	for _, key := range models.PersonalKeys {
		if v, _ := p.Personal.Get(key); v != "" {
			line(fmt.Sprintf("%s: %s", key, v))
		}
	}

	if len(p.Experiences) > 0 {
		heading("Experience")
		for _, e := range p.Experiences {
			end := e.EndDate
			if e.Current {
				end = "Present"
			}
			line(fmt.Sprintf("%s, %s (%s - %s)", e.Position, e.Company, e.StartDate, end))
			if e.Description != "" {
				line(e.Description)
			}
		}
	}

	if len(p.Projects) > 0 {
		heading("Projects")
		for _, pr := range p.Projects {
			line(fmt.Sprintf("%s: %s", pr.Name, pr.Description))
		}
	}

	if len(p.Education) > 0 {
		heading("Education")
		for _, e := range p.Education {
			line(fmt.Sprintf("%s %s, %s %s", e.Degree, e.Major, e.School, e.GraduationYear))
		}
	}

	if len(p.Skills) > 0 {
		heading("Skills")
		line(strings.Join(p.Skills, ", "))
	}

	if len(p.Custom) > 0 {
		heading("Additional Information")
		keys := make([]string, 0, len(p.Custom))
		for k := range p.Custom {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			line(fmt.Sprintf("%s: %s", k, p.Custom[k]))
		}
	}
	return doc
}

// WriteProfileDocx writes the profile as a .docx file to w.
func WriteProfileDocx(p *models.Profile, w io.Writer) error {
	return ProfileDocument(p).Save(w)
}

// GenerateWordFile saves the profile as a .docx file at path.
func GenerateWordFile(p *models.Profile, path string) error {
	return ProfileDocument(p).SaveToFile(path)
}
