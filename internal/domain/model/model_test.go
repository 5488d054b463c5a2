package model_test

import (
	"testing"

	"github.com/hackit-tw/recruit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStages(t *testing.T) {
	Convey("Given the declared stages", t, func() {
		Convey("Then exactly four are terminal", func() {
			terminal := 0
			for _, s := range model.Stages {
				So(s.Valid(), ShouldBeTrue)
				if s.Terminal() {
					terminal++
				}
			}
			So(terminal, ShouldEqual, 4)
			So(len(model.OpenStages()), ShouldEqual, len(model.Stages)-4)
		})

		Convey("Then unknown values are not valid", func() {
			So(model.Stage("interview_no_show").Valid(), ShouldBeFalse)
			So(model.Stage("").Valid(), ShouldBeFalse)
		})
	})
}

func TestApplicationClone(t *testing.T) {
	Convey("Given an application with nested data", t, func() {
		app := model.Application{
			ID:        "app-1",
			Applicant: model.Applicant{Teams: []string{"design"}},
			AuditLog:  []model.AuditEntry{{Action: model.ActionAccept}},
			AdminData: &model.AdminData{Group: "design"},
		}

		Convey("When the clone is mutated", func() {
			c := app.Clone()
			c.Applicant.Teams[0] = "finance"
			c.AuditLog = append(c.AuditLog, model.AuditEntry{Action: model.ActionContact})
			c.AuditLog[0].Note = "changed"
			c.AdminData.Group = "finance"

			Convey("Then the original is untouched", func() {
				So(app.Applicant.Teams[0], ShouldEqual, "design")
				So(len(app.AuditLog), ShouldEqual, 1)
				So(app.AuditLog[0].Note, ShouldBeEmpty)
				So(app.AdminData.Group, ShouldEqual, "design")
			})
		})

		Convey("Then team lookup ignores case", func() {
			So(app.HasTeam("Design"), ShouldBeTrue)
			So(app.HasTeam("it"), ShouldBeFalse)
		})
	})
}

func TestEmailFingerprint(t *testing.T) {
	Convey("Given two spellings of the same email", t, func() {
		a := model.EmailFingerprint("  Someone@Example.com ")
		b := model.EmailFingerprint("someone@example.com")

		Convey("Then the fingerprints match and are hex sha256", func() {
			So(a, ShouldEqual, b)
			So(len(a), ShouldEqual, 64)
			So(model.EmailFingerprint("other@example.com"), ShouldNotEqual, a)
		})
	})
}

func TestStaff(t *testing.T) {
	Convey("Given a staff record", t, func() {
		s := model.Staff{Name: "Lin", ActiveStatus: model.StatusActive}

		Convey("Then display name falls back to the name", func() {
			So(s.DisplayName(), ShouldEqual, "Lin")
			s.Nickname = "Linny"
			So(s.DisplayName(), ShouldEqual, "Linny")
		})

		Convey("Then only active staff are active", func() {
			So(s.Active(), ShouldBeTrue)
			s.ActiveStatus = model.StatusSuspended
			So(s.Active(), ShouldBeFalse)
		})
	})
}
