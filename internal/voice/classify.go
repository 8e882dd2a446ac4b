package voice

import (
	"fmt"
	"strings"
)

const (
	TypeNotice    = "NOTICE"
	TypeDeadline  = "DEADLINE"
	TypeExam      = "EXAM"
	TypeSchedule  = "SCHEDULE"
	TypeEvent     = "EVENT"
	TypeTask      = "TASK"
	TypeWeather   = "WEATHER"
	TypeCalculate = "CALCULATE"
	TypeSummarize = "SUMMARIZE"
	TypeYouTube   = "YOUTUBE"
	TypeJoke      = "JOKE"
	TypeGeneral   = "GENERAL"
)

type rule struct {
	keywords  []string
	queryType string
}

// rules are checked in order; the first rule with a keyword contained in the
// lower-cased query wins.
var rules = []rule{
	{[]string{"notice"}, TypeNotice},
	{[]string{"deadline", "due"}, TypeDeadline},
	{[]string{"exam"}, TypeExam},
	{[]string{"schedule", "class"}, TypeSchedule},
	{[]string{"event"}, TypeEvent},
	{[]string{"task"}, TypeTask},
	{[]string{"weather"}, TypeWeather},
	{[]string{"calculate", "solve"}, TypeCalculate},
	{[]string{"summarize"}, TypeSummarize},
	{[]string{"youtube"}, TypeYouTube},
	{[]string{"joke"}, TypeJoke},
}

var canned = map[string]string{
	TypeNotice:   "You have 3 new campus notices. The latest is about the upcoming hackathon next month. Check your dashboard for details.",
	TypeDeadline: "You have 2 upcoming deadlines: CS Assignment due tomorrow at 5 PM, and Math Project due on Friday. Start working on them!",
	TypeExam:     "Your next exam is Data Structures on February 15th. You have 12 days to prepare. Good luck!",
	TypeSchedule: "Today's schedule: Programming at 9 AM, Data Structures at 11 AM, and Web Development at 2 PM.",
	TypeEvent:    "There are several upcoming events: Annual Fest on Feb 20, Tech Summit on Mar 5, and Sports Day on Mar 12.",
}

func Classify(query string) string {
	q := strings.ToLower(query)

	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(q, kw) {
				return r.queryType
			}
		}
	}

	return TypeGeneral
}

// CannedResponse is the local fallback used when the assistant is absent or failing.
func CannedResponse(query string) string {
	if text, ok := canned[Classify(query)]; ok {
		return text
	}

	return fmt.Sprintf("I understood: \"%s\". How can I help you with campus information?", query)
}
