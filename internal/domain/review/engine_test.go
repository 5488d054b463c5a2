package review_test

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/hackit-tw/recruit/internal/domain/access"
	"github.com/hackit-tw/recruit/internal/domain/model"
	"github.com/hackit-tw/recruit/internal/domain/review"
	. "github.com/smartystreets/goconvey/convey"
)

var now = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

func member(id string, level int) model.Staff {
	return model.Staff{ID: id, Name: id, PermissionLevel: level, ActiveStatus: model.StatusActive}
}

func fresh() model.Application {
	return model.Application{ID: "app-1", Stage: model.StageSubmitted, Applicant: model.Applicant{Name: "Chen"}}
}

func cmd(action model.Action, s model.Staff) review.Command {
	return review.Command{Action: action, Actor: access.StaffActor(s), At: now}
}

// walk applies actions in order as actor and fails the test on any error.
func walk(e *review.Engine, app model.Application, actor model.Staff, actions ...model.Action) model.Application {
	for _, a := range actions {
		next, _, err := e.Apply(app, cmd(a, actor))
		So(err, ShouldBeNil)
		app = next
	}
	return app
}

func TestAccept(t *testing.T) {
	Convey("Given a fresh application and the default policy", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		app := fresh()

		Convey("When a level 2 staff member accepts", func() {
			next, res, err := e.Apply(app, cmd(model.ActionAccept, member("s2", 2)))

			Convey("Then the application is assigned and audited once", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StageAssignedNotContacted)
				So(next.Assignee, ShouldEqual, "s2")
				So(len(next.AuditLog), ShouldEqual, 1)
				So(next.AuditLog[0].Actor, ShouldEqual, "s2")
				So(next.AuditLog[0].Action, ShouldEqual, model.ActionAccept)
				So(next.AuditLog[0].At, ShouldEqual, now)
				So(res.Repost, ShouldBeTrue)
				So(res.Outbound, ShouldEqual, model.OutcomeNone)
			})

			Convey("Then the input application is unchanged", func() {
				So(app.Stage, ShouldEqual, model.StageSubmitted)
				So(app.Assignee, ShouldBeEmpty)
				So(app.AuditLog, ShouldBeEmpty)
			})
		})

		Convey("When a level 1 staff member accepts", func() {
			next, _, err := e.Apply(app, cmd(model.ActionAccept, member("s1", 1)))

			Convey("Then it is unauthorized and nothing changes", func() {
				So(errors.Is(err, review.ErrUnauthorized), ShouldBeTrue)
				So(next.Stage, ShouldEqual, model.StageSubmitted)
				So(next.AuditLog, ShouldBeEmpty)
			})
		})

		Convey("When the accept threshold is configured lower", func() {
			p := access.DefaultPolicy()
			p.AcceptLevel = 1
			_, _, err := review.NewEngine(p).Apply(app, cmd(model.ActionAccept, member("s1", 1)))

			Convey("Then level 1 may accept", func() {
				So(err, ShouldBeNil)
			})
		})

		Convey("When two accepts race on the same rendered message", func() {
			first := cmd(model.ActionAccept, member("a", 2))
			first.ExpectedStage = model.StageSubmitted
			second := cmd(model.ActionAccept, member("b", 3))
			second.ExpectedStage = model.StageSubmitted

			afterFirst, _, err1 := e.Apply(app, first)
			_, _, err2 := e.Apply(afterFirst, second)

			Convey("Then the second sees stale state", func() {
				So(err1, ShouldBeNil)
				So(errors.Is(err2, review.ErrStaleState), ShouldBeTrue)
				So(afterFirst.Assignee, ShouldEqual, "a")
			})
		})
	})
}

func TestInterviewFlow(t *testing.T) {
	Convey("Given an application assigned to a level 1 staff member", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		owner := member("owner", 1)
		app := fresh()
		app.Stage = model.StageAssignedNotContacted
		app.Assignee = owner.ID

		Convey("When the assignee walks it to an interview and reports a no-show", func() {
			app = walk(e, app, owner, model.ActionContact, model.ActionSchedule)
			So(app.Stage, ShouldEqual, model.StageInterviewScheduled)
			next, _, err := e.Apply(app, cmd(model.ActionNoShow, owner))

			Convey("Then it returns to contact attempted with one more audit entry", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StageContactAttempted)
				So(len(next.AuditLog), ShouldEqual, len(app.AuditLog)+1)
				last := next.AuditLog[len(next.AuditLog)-1]
				So(last.Action, ShouldEqual, model.ActionNoShow)
				So(last.From, ShouldEqual, model.StageInterviewScheduled)
				So(last.To, ShouldEqual, model.StageContactAttempted)
			})
		})

		Convey("When a different level 1 member acts", func() {
			_, _, err := e.Apply(app, cmd(model.ActionContact, member("other", 1)))

			Convey("Then it is unauthorized", func() {
				So(errors.Is(err, review.ErrUnauthorized), ShouldBeTrue)
			})
		})

		Convey("When an override level member acts instead of the assignee", func() {
			next, _, err := e.Apply(app, cmd(model.ActionContact, member("lead", 2)))

			Convey("Then it succeeds and the assignee is kept", func() {
				So(err, ShouldBeNil)
				So(next.Assignee, ShouldEqual, "owner")
			})
		})

		Convey("When the interview is failed with a reason", func() {
			app = walk(e, app, owner, model.ActionContact, model.ActionSchedule, model.ActionAttend)
			c := cmd(model.ActionFail, owner)
			c.Note = "  schedule conflict  "
			next, res, err := e.Apply(app, c)

			Convey("Then the failure outcome carries the trimmed reason", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StageFailed)
				So(res.Outbound, ShouldEqual, model.OutcomeFailed)
				So(res.Reason, ShouldEqual, "schedule conflict")
				So(res.Repost, ShouldBeFalse)
				So(next.AuditLog[len(next.AuditLog)-1].Note, ShouldEqual, "schedule conflict")
			})
		})

		Convey("When an action that takes no note is given one", func() {
			c := cmd(model.ActionContact, owner)
			c.Note = "called twice"
			next, _, err := e.Apply(app, c)

			Convey("Then the note is not recorded", func() {
				So(err, ShouldBeNil)
				So(next.AuditLog[0].Note, ShouldBeEmpty)
			})
		})
	})
}

func TestRejectRequiresNote(t *testing.T) {
	Convey("Given an assigned application", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		owner := member("owner", 2)
		app := walk(e, fresh(), owner, model.ActionAccept)

		for _, action := range []model.Action{model.ActionReject, model.ActionCancel, model.ActionWithdraw} {
			Convey("When "+string(action)+" is sent without a note", func() {
				c := cmd(action, owner)
				c.Note = "   "
				next, _, err := e.Apply(app, c)

				Convey("Then it is an invalid transition and nothing changes", func() {
					So(errors.Is(err, review.ErrNoteRequired), ShouldBeTrue)
					So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)
					So(next.Stage, ShouldEqual, model.StageAssignedNotContacted)
					So(len(next.AuditLog), ShouldEqual, 1)
				})
			})
		}

		Convey("When reject carries a note", func() {
			c := cmd(model.ActionReject, owner)
			c.Note = "not a fit"
			next, res, err := e.Apply(app, c)

			Convey("Then the application fails and the applicant is notified", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StageFailed)
				So(res.Outbound, ShouldEqual, model.OutcomeFailed)
			})
		})
	})
}

func TestTransfer(t *testing.T) {
	Convey("Given an application waiting for its interview", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		owner := member("owner", 1)
		target := member("target", 1)
		app := fresh()
		app.Stage = model.StageInterviewScheduled
		app.Assignee = owner.ID

		Convey("When the assignee transfers to an existing staff member", func() {
			c := cmd(model.ActionTransfer, owner)
			c.TransferTo = &target
			next, res, err := e.Apply(app, c)

			Convey("Then stage resets and the audit entry names both assignees", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StageAssignedNotContacted)
				So(next.Assignee, ShouldEqual, "target")
				entry := next.AuditLog[0]
				So(entry.FromAssignee, ShouldEqual, "owner")
				So(entry.ToAssignee, ShouldEqual, "target")
				So(res.PreviousAssignee, ShouldEqual, "owner")
				So(res.Assignee, ShouldEqual, "target")
			})
		})

		Convey("When the target does not exist", func() {
			_, _, err := e.Apply(app, cmd(model.ActionTransfer, owner))

			Convey("Then UnknownAssignee is returned", func() {
				So(errors.Is(err, review.ErrUnknownAssignee), ShouldBeTrue)
			})
		})

		Convey("When the target is inactive", func() {
			gone := member("gone", 3)
			gone.ActiveStatus = model.StatusInactive
			c := cmd(model.ActionTransfer, owner)
			c.TransferTo = &gone
			_, _, err := e.Apply(app, c)

			Convey("Then UnknownAssignee is returned", func() {
				So(errors.Is(err, review.ErrUnknownAssignee), ShouldBeTrue)
			})
		})

		Convey("When transferring to the current assignee", func() {
			c := cmd(model.ActionTransfer, owner)
			c.TransferTo = &owner
			_, _, err := e.Apply(app, c)

			Convey("Then it is invalid", func() {
				So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)
			})
		})

		Convey("When transfer is attempted on an unassigned application", func() {
			c := cmd(model.ActionTransfer, member("lead", 5))
			c.TransferTo = &target
			_, _, err := e.Apply(fresh(), c)

			Convey("Then it is invalid", func() {
				So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)
			})
		})
	})
}

func TestPassedFlow(t *testing.T) {
	Convey("Given an application awaiting its result", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		owner := member("owner", 1)
		app := fresh()
		app.Stage = model.StageAwaitingResult
		app.Assignee = owner.ID

		app = walk(e, app, owner, model.ActionPass)

		Convey("When admin data is missing", func() {
			_, _, err := e.Apply(app, cmd(model.ActionAdminData, owner))

			Convey("Then the payload is required", func() {
				So(errors.Is(err, review.ErrMissingPayload), ShouldBeTrue)
			})
		})

		Convey("When admin data is submitted", func() {
			c := cmd(model.ActionAdminData, owner)
			c.AdminData = &model.AdminData{OfficialEmail: "chen@staff.example.org", Group: "design"}
			next, res, err := e.Apply(app, c)

			Convey("Then the applicant is asked for their data", func() {
				So(err, ShouldBeNil)
				So(next.Stage, ShouldEqual, model.StagePassedAwaitingApplicantData)
				So(next.AdminData.Group, ShouldEqual, "design")
				So(res.Outbound, ShouldEqual, model.OutcomePassed)
			})

			Convey("And staff try to register on the applicant's behalf", func() {
				r := cmd(model.ActionRegister, member("lead", 6))
				r.ApplicantData = &model.ApplicantData{Nickname: "C"}
				_, _, err := e.Apply(next, r)

				Convey("Then only the applicant may", func() {
					So(errors.Is(err, review.ErrUnauthorized), ShouldBeTrue)
				})
			})

			Convey("And an applicant token for another application is used", func() {
				r := review.Command{Action: model.ActionRegister, Actor: access.ApplicantActor("other"), At: now,
					ApplicantData: &model.ApplicantData{Nickname: "C"}}
				_, _, err := e.Apply(next, r)

				Convey("Then it is unauthorized", func() {
					So(errors.Is(err, review.ErrUnauthorized), ShouldBeTrue)
				})
			})

			Convey("And the applicant registers", func() {
				r := review.Command{Action: model.ActionRegister, Actor: access.ApplicantActor(app.ID), At: now,
					ApplicantData: &model.ApplicantData{Nickname: "C", School: "NTU", EmergencyContact: "mom"}}
				done, res, err := e.Apply(next, r)

				Convey("Then the application passes and staff promotion is requested", func() {
					So(err, ShouldBeNil)
					So(done.Stage, ShouldEqual, model.StagePassed)
					So(res.PromoteStaff, ShouldBeTrue)
					So(done.AuditLog[len(done.AuditLog)-1].Actor, ShouldEqual, "applicant:app-1")
				})
			})
		})

		Convey("When an applicant actor tries a staff action", func() {
			c := review.Command{Action: model.ActionFail, Actor: access.ApplicantActor(app.ID), Note: "x", At: now}
			_, _, err := e.Apply(app, c)

			Convey("Then it is unauthorized", func() {
				So(errors.Is(err, review.ErrUnauthorized), ShouldBeTrue)
			})
		})
	})
}

func TestTerminalAndUnknown(t *testing.T) {
	Convey("Given terminal applications", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		lead := member("lead", 6)

		for _, s := range []model.Stage{model.StagePassed, model.StageFailed, model.StageCancelled, model.StageWithdrawn} {
			app := fresh()
			app.Stage = s

			Convey("Then no action is listed or legal in "+string(s), func() {
				So(review.ActionsFor(s), ShouldBeEmpty)
				c := cmd(model.ActionCancel, lead)
				c.Note = "n"
				_, _, err := e.Apply(app, c)
				So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)
			})
		}

		Convey("Then unknown actions and stages are rejected", func() {
			_, _, err := e.Apply(fresh(), cmd(model.Action("promote"), lead))
			So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)

			broken := fresh()
			broken.Stage = "interview_no_show"
			_, _, err = e.Apply(broken, cmd(model.ActionAccept, lead))
			So(errors.Is(err, review.ErrInvalidTransition), ShouldBeTrue)

			_, ok := review.ParseAction("promote")
			So(ok, ShouldBeFalse)
		})
	})
}

func TestActionsFor(t *testing.T) {
	Convey("Given the stage lookup", t, func() {
		Convey("Then submitted offers accept and the terminal edges", func() {
			So(review.ActionsFor(model.StageSubmitted), ShouldResemble, []model.Action{
				model.ActionAccept, model.ActionReject, model.ActionCancel, model.ActionWithdraw,
			})
		})

		Convey("Then the applicant-only register action is never offered as a button", func() {
			So(review.ActionsFor(model.StagePassedAwaitingApplicantData), ShouldNotContain, model.ActionRegister)
			So(review.Legal(model.StagePassedAwaitingApplicantData, model.ActionRegister), ShouldBeTrue)
		})

		Convey("Then the lookup is stable", func() {
			for _, s := range model.Stages {
				So(review.ActionsFor(s), ShouldResemble, review.ActionsFor(s))
			}
		})

		Convey("Then note requirements match the terminal edges", func() {
			So(review.NoteRequired(model.ActionReject), ShouldBeTrue)
			So(review.NoteRequired(model.ActionFail), ShouldBeTrue)
			So(review.NoteRequired(model.ActionAccept), ShouldBeFalse)
			to, ok := review.Target(model.ActionNoShow)
			So(ok, ShouldBeTrue)
			So(to, ShouldEqual, model.StageContactAttempted)
		})
	})
}

func TestRandomSequences(t *testing.T) {
	Convey("Given random action sequences from mixed actors", t, func() {
		e := review.NewEngine(access.DefaultPolicy())
		rng := rand.New(rand.NewSource(7))
		actors := []model.Staff{member("low", 0), member("mid", 1), member("lead", 2)}
		target := member("target", 1)
		actions := []model.Action{
			model.ActionAccept, model.ActionContact, model.ActionSchedule, model.ActionNoShow,
			model.ActionAttend, model.ActionPass, model.ActionFail, model.ActionAdminData,
			model.ActionTransfer, model.ActionReject, model.ActionCancel, model.ActionWithdraw,
		}

		Convey("Then stages stay declared and audit length equals successes", func() {
			for run := 0; run < 50; run++ {
				app := fresh()
				successes := 0
				for step := 0; step < 30; step++ {
					c := cmd(actions[rng.Intn(len(actions))], actors[rng.Intn(len(actors))])
					if rng.Intn(2) == 0 {
						c.Note = "because"
					}
					if rng.Intn(2) == 0 {
						c.TransferTo = &target
					}
					c.AdminData = &model.AdminData{OfficialEmail: "x@example.org", Group: "g"}

					next, _, err := e.Apply(app, c)
					if err == nil {
						successes++
					} else {
						So(len(next.AuditLog), ShouldEqual, len(app.AuditLog))
					}
					app = next
					So(app.Stage.Valid(), ShouldBeTrue)
				}
				So(len(app.AuditLog), ShouldEqual, successes)
			}
		})
	})
}
