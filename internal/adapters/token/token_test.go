package token

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	. "github.com/smartystreets/goconvey/convey"
)

func TestService(t *testing.T) {
	Convey("Given a token service with a 30 day lifetime", t, func() {
		now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }
		s := New("secret", 30*24*time.Hour, WithClock(clock))

		Convey("When a token is issued", func() {
			raw, err := s.Issue("app-1")
			So(err, ShouldBeNil)

			Convey("Then it verifies to the application id", func() {
				id, err := s.Verify(raw)
				So(err, ShouldBeNil)
				So(id, ShouldEqual, "app-1")
			})

			Convey("Then it is rejected after expiry", func() {
				later := New("secret", time.Hour, WithClock(func() time.Time { return now.Add(31 * 24 * time.Hour) }))
				_, err := later.Verify(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})

			Convey("Then another secret rejects it", func() {
				_, err := New("other", time.Hour, WithClock(clock)).Verify(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When a token uses another algorithm", func() {
			claims := jwt.RegisteredClaims{Subject: "app-1", ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))}
			raw, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte("secret"))
			So(err, ShouldBeNil)

			Convey("Then it is rejected", func() {
				_, err := s.Verify(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When a token has no expiry", func() {
			raw, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "app-1"}).SignedString([]byte("secret"))

			Convey("Then it is rejected", func() {
				_, err := s.Verify(raw)
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})

		Convey("When the input is garbage", func() {
			_, err := s.Verify("not-a-token")

			Convey("Then it is rejected", func() {
				So(errors.Is(err, ErrInvalidToken), ShouldBeTrue)
			})
		})
	})
}
