package parsers

import (
	"fmt"
	"regexp"
	"strings"

	"formautofill/models"
)

var (
	emailRegex    = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRegex    = regexp.MustCompile(`(\+?1[-.\s]?)?\(?([0-9]{3})\)?[-.\s]?([0-9]{3})[-.\s]?([0-9]{4})`)
	linkedInRegex = regexp.MustCompile(`(?i)(https?://)?(www\.)?linkedin\.com/in/[A-Za-z0-9_-]+/?`)
	githubRegex   = regexp.MustCompile(`(?i)(https?://)?(www\.)?github\.com/[A-Za-z0-9_-]+/?`)
	nameWordRegex = regexp.MustCompile(`^[A-Za-z'.-]+$`)
	yearRegex     = regexp.MustCompile(`\b(19|20)\d{2}\b`)
	dateRegex     = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|oct|nov|dec)[a-z]*\.?\s+\d{4}\b|\b\d{1,2}/\d{4}\b|\b(19|20)\d{2}\b|\bpresent\b|\bcurrent\b`)
	roleRegex     = regexp.MustCompile(`^(.+?)\s+(?:at|@|\||-|–|—|,)\s+(.+)$`)
	nonDigitRegex = regexp.MustCompile(`\D`)
)

var sectionHeaders = map[string]string{
	"experience":              "experience",
	"work experience":         "experience",
	"employment":              "experience",
	"employment history":      "experience",
	"professional experience": "experience",
	"career history":          "experience",
	"education":               "education",
	"academic background":     "education",
	"skills":                  "skills",
	"technical skills":        "skills",
	"competencies":            "skills",
	"technologies":            "skills",
	"summary":                 "summary",
	"profile":                 "summary",
	"objective":               "summary",
	"about":                   "summary",
	"professional summary":    "summary",
	"projects":                "projects",
	"personal projects":       "projects",
}

var degreeKeywords = []string{"bachelor", "master", "phd", "ph.d", "doctorate", "associate", "b.s.", "b.a.", "m.s.", "m.a.", "mba", "bsc", "msc", "diploma"}

// ParseResume builds a profile from plain resume text. The result has no id;
// the profile store assigns one on save.
func ParseResume(text string) (*models.Profile, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty resume text")
	}

	p := &models.Profile{Skills: []string{}, Custom: map[string]string{}}
	parseContact(p, text)

	sections := splitSections(text)
	p.Experiences = parseExperience(sections["experience"])
	p.Education = parseEducation(sections["education"])
	p.Projects = parseProjects(sections["projects"])
	p.Skills = parseSkills(sections["skills"])
	if summary := strings.Join(sections["summary"], " "); summary != "" {
		p.Custom["summary"] = summary
	}

	p.Name = strings.TrimSpace(p.Personal.FirstName + " " + p.Personal.LastName)
	if p.Name == "" {
		p.Name = "Imported resume"
	}
	return p, nil
}

func parseContact(p *models.Profile, text string) {
	p.Personal.Email = emailRegex.FindString(text)
	if phone := phoneRegex.FindString(text); phone != "" {
		p.Personal.Phone = normalizePhone(phone)
	}
	p.Personal.LinkedIn = linkedInRegex.FindString(text)
	p.Personal.Github = githubRegex.FindString(text)

	for i, line := range strings.Split(text, "\n") {
		if i > 5 {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" || strings.Contains(line, "@") || phoneRegex.MatchString(line) {
			continue
		}
		words := strings.Fields(line)
		if len(words) < 2 || len(words) > 4 || sectionOf(line) != "" {
			continue
		}
		isName := true
		for _, w := range words {
			if len(w) < 2 || !nameWordRegex.MatchString(w) {
				isName = false
				break
			}
		}
		if isName {
			p.Personal.FirstName = words[0]
			p.Personal.LastName = strings.Join(words[1:], " ")
			return
		}
	}
}

func sectionOf(line string) string {
	key := strings.ToLower(strings.TrimSuffix(strings.TrimSpace(line), ":"))
	return sectionHeaders[key]
}

// splitSections groups the non-blank lines under each recognised header.
func splitSections(text string) map[string][]string {
	sections := make(map[string][]string)
	current := ""
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if s := sectionOf(line); s != "" {
			current = s
			continue
		}
		if current != "" {
			sections[current] = append(sections[current], line)
		}
	}
	return sections
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "•") || strings.HasPrefix(line, "-") || strings.HasPrefix(line, "*")
}

func stripBullet(line string) string {
	for _, b := range []string{"•", "-", "*"} {
		line = strings.TrimPrefix(line, b)
	}
	return strings.TrimSpace(line)
}

// isDateLine reports whether a line is only a date range such as
// "June 2020 - Present".
func isDateLine(line string) bool {
	rest := dateRegex.ReplaceAllString(line, "")
	rest = strings.Trim(rest, " -–—to,")
	return rest == "" && dateRegex.MatchString(line)
}

func dateRange(line string) (start, end string) {
	dates := dateRegex.FindAllString(line, -1)
	switch len(dates) {
	case 0:
		return "", ""
	case 1:
		return dates[0], ""
	}
	return dates[0], dates[len(dates)-1]
}

func isOngoing(end string) bool {
	e := strings.ToLower(end)
	return e == "present" || e == "current"
}

func parseExperience(lines []string) []models.WorkExperience {
	var out []models.WorkExperience
	var bullets []string
	flush := func() {
		if len(out) > 0 && len(bullets) > 0 {
			out[len(out)-1].Description = strings.Join(bullets, "\n")
		}
		bullets = nil
	}

	for _, line := range lines {
		switch {
		case isDateLine(line) && len(out) > 0:
			last := &out[len(out)-1]
			last.StartDate, last.EndDate = dateRange(line)
			if isOngoing(last.EndDate) {
				last.EndDate = ""
				last.Current = true
			}
		case !isBullet(line) && roleRegex.MatchString(line):
			flush()
			m := roleRegex.FindStringSubmatch(line)
			out = append(out, models.WorkExperience{
				Position: strings.TrimSpace(m[1]),
				Company:  strings.TrimSpace(m[2]),
			})
		case len(out) > 0:
			bullets = append(bullets, stripBullet(line))
		}
	}
	flush()
	return out
}

func hasDegree(line string) bool {
	lower := strings.ToLower(line)
	for _, k := range degreeKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}

func parseEducation(lines []string) []models.Education {
	var out []models.Education
	for _, line := range lines {
		switch {
		case hasDegree(line):
			edu := models.Education{}
			degree := strings.TrimSpace(dateRegex.ReplaceAllString(line, ""))
			if i := strings.Index(strings.ToLower(degree), " in "); i > 0 {
				edu.Degree, edu.Major = degree[:i], strings.TrimSpace(degree[i+4:])
			} else if parts := strings.SplitN(degree, ",", 2); len(parts) == 2 {
				edu.Degree, edu.Major = strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
			} else {
				edu.Degree = degree
			}
			edu.GraduationYear = lastYear(line)
			out = append(out, edu)
		case len(out) == 0:
			continue
		case isDateLine(line):
			if y := lastYear(line); y != "" {
				out[len(out)-1].GraduationYear = y
			}
		case out[len(out)-1].School == "":
			out[len(out)-1].School = line
		}
	}
	return out
}

func lastYear(line string) string {
	years := yearRegex.FindAllString(line, -1)
	if len(years) == 0 {
		return ""
	}
	return years[len(years)-1]
}

func parseProjects(lines []string) []models.Project {
	var out []models.Project
	for _, line := range lines {
		if isBullet(line) && len(out) > 0 {
			last := &out[len(out)-1]
			last.Description = strings.TrimSpace(last.Description + " " + stripBullet(line))
			continue
		}
		name, desc, _ := strings.Cut(line, ":")
		out = append(out, models.Project{Name: strings.TrimSpace(name), Description: strings.TrimSpace(desc)})
	}
	return out
}

func parseSkills(lines []string) []string {
	skills := []string{}
	seen := make(map[string]bool)
	for _, line := range lines {
		fields := strings.FieldsFunc(line, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		})
		for _, f := range fields {
			f = stripBullet(f)
			if label, rest, ok := strings.Cut(f, ":"); ok && rest != "" && len(label) < 30 {
				f = strings.TrimSpace(rest)
			}
			key := strings.ToLower(f)
			if len(f) < 2 || len(f) >= 50 || seen[key] {
				continue
			}
			seen[key] = true
			skills = append(skills, f)
		}
	}
	return skills
}

// normalizePhone formats ten and eleven digit US numbers.
func normalizePhone(phone string) string {
	digits := nonDigitRegex.ReplaceAllString(phone, "")
	switch {
	case len(digits) == 10:
		return fmt.Sprintf("(%s) %s-%s", digits[0:3], digits[3:6], digits[6:10])
	case len(digits) == 11 && digits[0] == '1':
		return fmt.Sprintf("+1 (%s) %s-%s", digits[1:4], digits[4:7], digits[7:11])
	}
	return phone
}
