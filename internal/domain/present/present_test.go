package present_test

import (
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/present"
	. "github.com/smartystreets/goconvey/convey"
)

func sample() model.Application {
	return model.Application{
		ID:    "6f1c7f0e-0000-4000-8000-000000000001",
		Stage: model.StageInterviewScheduled,
		Applicant: model.Applicant{
			Name:         "Wang",
			Email:        "wang@example.org",
			Phone:        "0912345678",
			Teams:        []string{"design", "it"},
			Introduction: "I build things.",
		},
		Assignee:  "s1",
		CreatedAt: time.Date(2026, 2, 1, 8, 0, 0, 0, time.UTC),
		AuditLog: []model.AuditEntry{
			{At: time.Date(2026, 2, 2, 9, 0, 0, 0, time.UTC), Actor: "s1", Action: model.ActionAccept},
		},
	}
}

func TestPresent(t *testing.T) {
	Convey("Given an application waiting for its interview", t, func() {
		app := sample()
		names := present.Names{"s1": "Lin"}

		Convey("When it is presented twice", func() {
			a := present.Present(app, names)
			b := present.Present(app, names)

			Convey("Then both renderings carry the same action set", func() {
				So(a.Actions, ShouldResemble, b.Actions)
				So(a, ShouldResemble, b)
			})
		})

		Convey("When it is presented", func() {
			v := present.Present(app, names)

			Convey("Then the buttons match the stage's legal actions", func() {
				var actions []model.Action
				for _, btn := range v.Actions {
					actions = append(actions, btn.Action)
					stage, action, ok := present.ParseCustomID(btn.CustomID)
					So(ok, ShouldBeTrue)
					So(stage, ShouldEqual, model.StageInterviewScheduled)
					So(action, ShouldEqual, btn.Action)
				}
				So(actions, ShouldContain, model.ActionNoShow)
				So(actions, ShouldContain, model.ActionAttend)
				So(actions, ShouldNotContain, model.ActionAccept)
			})

			Convey("Then the owner and history use display names", func() {
				var owner, hist string
				for _, f := range v.Fields {
					switch f.Name {
					case "Owner":
						owner = f.Value
					case "History":
						hist = f.Value
					}
				}
				So(owner, ShouldEqual, "Lin")
				So(hist, ShouldEqual, "2026-02-02 09:00 Lin accept")
				So(v.Title, ShouldEqual, present.StageTitle(model.StageInterviewScheduled))
				So(v.Color, ShouldEqual, 0x3498DB)
			})
		})

		Convey("When the application is terminal", func() {
			app.Stage = model.StagePassed

			Convey("Then there are no actions", func() {
				So(present.Present(app, nil).Actions, ShouldBeEmpty)
			})
		})

		Convey("When rendering the log view of a transfer", func() {
			entry := model.AuditEntry{Actor: "s1", Action: model.ActionTransfer, From: model.StageInterviewScheduled,
				To: model.StageAssignedNotContacted, FromAssignee: "s1", ToAssignee: "s2"}
			v := present.LogView(app, entry, names)

			Convey("Then both assignees are named", func() {
				found := false
				for _, f := range v.Fields {
					if f.Name == "Reassigned" {
						found = true
						So(f.Value, ShouldEqual, "Lin -> s2")
					}
				}
				So(found, ShouldBeTrue)
				So(v.Actions, ShouldBeEmpty)
			})
		})

		Convey("When rendering the full text", func() {
			app.Applicant.Introduction = strings.Repeat("x", 5000)
			text := present.FullText(app, names)

			Convey("Then nothing is truncated", func() {
				So(text, ShouldContainSubstring, strings.Repeat("x", 5000))
				So(text, ShouldNotContainSubstring, present.TruncationMarker)
			})
		})
	})
}

func TestParseCustomID(t *testing.T) {
	Convey("Given encoded custom ids", t, func() {
		Convey("Then well formed ids round trip", func() {
			id := present.CustomID(model.StageSubmitted, model.ActionAccept)
			stage, action, ok := present.ParseCustomID(id)
			So(ok, ShouldBeTrue)
			So(stage, ShouldEqual, model.StageSubmitted)
			So(action, ShouldEqual, model.ActionAccept)
		})

		Convey("Then malformed ids are refused", func() {
			for _, id := range []string{"", "review:submitted", "other:submitted:accept", "review:bogus:accept", "review:submitted:bogus"} {
				_, _, ok := present.ParseCustomID(id)
				So(ok, ShouldBeFalse)
			}
		})
	})
}

func TestTruncate(t *testing.T) {
	Convey("Given a budget of 1024", t, func() {
		const budget = 1024

		Convey("Then a value of exactly the budget is untouched", func() {
			v := strings.Repeat("a", budget)
			So(present.Truncate(v, budget), ShouldEqual, v)
		})

		Convey("Then one character over is truncated with the marker", func() {
			v := strings.Repeat("a", budget+1)
			out := present.Truncate(v, budget)
			So(strings.HasSuffix(out, present.TruncationMarker), ShouldBeTrue)
			So(utf8.RuneCountInString(out), ShouldBeLessThanOrEqualTo, budget)
		})

		Convey("Then multi-byte text is counted in characters", func() {
			v := strings.Repeat("申", budget)
			So(present.Truncate(v, budget), ShouldEqual, v)
			out := present.Truncate(v+"請", budget)
			So(utf8.RuneCountInString(out), ShouldEqual, budget)
			So(utf8.ValidString(out), ShouldBeTrue)
		})

		Convey("Then a limit smaller than the marker still respects the limit", func() {
			So(utf8.RuneCountInString(present.Truncate("abcdefghijklmnopqrstuvwxyz", 5)), ShouldEqual, 5)
			So(present.Truncate("abc", 0), ShouldBeEmpty)
		})
	})
}

func TestPaginate(t *testing.T) {
	Convey("Given a view with many large fields", t, func() {
		view := present.View{Title: "Big", Actions: present.ActionSet(model.StageSubmitted)}
		for i := 0; i < 12; i++ {
			view.Fields = append(view.Fields, present.Field{Name: "f", Value: strings.Repeat("v", 900)})
		}
		budget := present.Budget{Field: 1024, Message: 2000, MaxFields: 25}

		Convey("When paginated", func() {
			msgs := present.Paginate(view, budget)

			Convey("Then every message fits the budget", func() {
				So(len(msgs), ShouldBeGreaterThan, 1)
				for i, m := range msgs {
					So(m.Size(), ShouldBeLessThanOrEqualTo, budget.Message)
					So(m.Part, ShouldEqual, i+1)
					So(m.Parts, ShouldEqual, len(msgs))
					So(m.Title, ShouldEndWith, ")")
				}
			})

			Convey("Then no field is dropped and order is kept", func() {
				total := 0
				for _, m := range msgs {
					total += len(m.Fields)
				}
				So(total, ShouldEqual, len(view.Fields))
			})

			Convey("Then only the first message has actions", func() {
				So(msgs[0].Actions, ShouldResemble, view.Actions)
				for _, m := range msgs[1:] {
					So(m.Actions, ShouldBeEmpty)
				}
			})
		})

		Convey("When the field count limit is lower than the field count", func() {
			small := view
			small.Fields = []present.Field{{Name: "a", Value: "1"}, {Name: "b", Value: "2"}, {Name: "c", Value: "3"}}
			msgs := present.Paginate(small, present.Budget{Field: 1024, Message: 6000, MaxFields: 2})

			Convey("Then fields spill into a continuation message", func() {
				So(len(msgs), ShouldEqual, 2)
				So(len(msgs[0].Fields), ShouldEqual, 2)
				So(msgs[1].Fields[0].Name, ShouldEqual, "c")
			})
		})

		Convey("When a single field exceeds the field budget", func() {
			huge := present.View{Title: "One", Fields: []present.Field{{Name: "Intro", Value: strings.Repeat("z", 5000)}}}
			msgs := present.Paginate(huge, present.DefaultBudget())

			Convey("Then it is truncated in place and kept", func() {
				So(len(msgs), ShouldEqual, 1)
				So(msgs[0].Title, ShouldEqual, "One")
				v := msgs[0].Fields[0].Value
				So(utf8.RuneCountInString(v), ShouldBeLessThanOrEqualTo, 1024)
				So(v, ShouldEndWith, present.TruncationMarker)
			})
		})

		Convey("When the view has no fields", func() {
			msgs := present.Paginate(present.View{Title: "Empty"}, present.DefaultBudget())

			Convey("Then one message is still produced", func() {
				So(len(msgs), ShouldEqual, 1)
				So(msgs[0].Fields, ShouldBeEmpty)
			})
		})
	})
}
