package mail

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
	gomail "github.com/wneessen/go-mail"

	"github.com/hackit-tw/recruit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func TestRenderer(t *testing.T) {
	Convey("Given the embedded templates", t, func() {
		r, err := NewRenderer()
		So(err, ShouldBeNil)

		Convey("When rendering the pass mail", func() {
			m, err := r.Render(TemplatePass, "wang@example.org", Data{
				Name: "Wang", ApplicationID: "a1", NextURL: "https://form.example.org/next?secret=tok",
			})

			Convey("Then it carries the next-steps link", func() {
				So(err, ShouldBeNil)
				So(m.To, ShouldEqual, "wang@example.org")
				So(m.Subject, ShouldNotBeEmpty)
				So(m.HTML, ShouldContainSubstring, "https://form.example.org/next?secret=tok")
				So(m.HTML, ShouldContainSubstring, "Wang")
			})
		})

		Convey("When rendering the fail mail with a multi-line reason", func() {
			m, err := r.Render(TemplateFail, "x@example.org", Data{Name: "<b>X</b>", Reason: "first|second <script>"})

			Convey("Then pipes become line breaks and input is escaped", func() {
				So(err, ShouldBeNil)
				So(m.HTML, ShouldContainSubstring, "first<br>second &lt;script&gt;")
				So(m.HTML, ShouldNotContainSubstring, "<b>X</b>")
			})
		})

		Convey("When rendering an unknown template", func() {
			_, err := r.Render(Template("promo"), "x@example.org", Data{})

			Convey("Then ErrUnknownTemplate is returned", func() {
				So(errors.Is(err, ErrUnknownTemplate), ShouldBeTrue)
			})
		})

		Convey("Then template names parse with or without extension", func() {
			tpl, ok := ParseTemplate("received.html")
			So(ok, ShouldBeTrue)
			So(tpl, ShouldEqual, TemplateReceived)
			_, ok = ParseTemplate("../secret")
			So(ok, ShouldBeFalse)
		})
	})
}

type fakeDeliverer struct {
	err   error
	calls int
	last  *gomail.Msg
}

func (f *fakeDeliverer) DialAndSendWithContext(_ context.Context, msgs ...*gomail.Msg) error {
	f.calls++
	if len(msgs) > 0 {
		f.last = msgs[0]
	}
	return f.err
}

func TestSMTPSender(t *testing.T) {
	Convey("Given an SMTP sender", t, func() {
		So(logger.Init(), ShouldBeNil)
		ctx := context.Background()
		d := &fakeDeliverer{}
		s := newSMTPSender(d, "noreply@example.org")
		msg := Message{To: "wang@example.org", Subject: "hi", HTML: "<p>hi</p>"}

		Convey("When the transport works", func() {
			err := s.Send(ctx, msg)

			Convey("Then the message is delivered", func() {
				So(err, ShouldBeNil)
				So(d.calls, ShouldEqual, 1)
				So(d.last.GetToString(), ShouldHaveLength, 1)
				So(d.last.GetToString()[0], ShouldContainSubstring, "wang@example.org")
			})
		})

		Convey("When the recipient is invalid", func() {
			err := s.Send(ctx, Message{To: "not an address"})

			Convey("Then nothing is sent", func() {
				So(err, ShouldNotBeNil)
				So(d.calls, ShouldEqual, 0)
			})
		})

		Convey("When the transport keeps failing", func() {
			d.err = errors.New("connection refused")
			for i := 0; i < 5; i++ {
				So(errors.Is(s.Send(ctx, msg), ErrUnavailable), ShouldBeTrue)
			}
			err := s.Send(ctx, msg)

			Convey("Then the breaker opens and stops dialing", func() {
				So(errors.Is(err, ErrUnavailable), ShouldBeTrue)
				So(errors.Is(err, gobreaker.ErrOpenState), ShouldBeTrue)
				So(d.calls, ShouldEqual, 5)
			})
		})
	})
}

func TestLogSender(t *testing.T) {
	Convey("Given a log sender", t, func() {
		So(logger.Init(), ShouldBeNil)

		Convey("Then sending always succeeds", func() {
			So(NewLogSender().Send(context.Background(), Message{To: "a@example.org"}), ShouldBeNil)
		})
	})
}
