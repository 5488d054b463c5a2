package dedupe_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/hackit-tw/recruit/internal/domain/dedupe"
	"github.com/hackit-tw/recruit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMemoryLedger(t *testing.T) {
	Convey("Given a new MemoryLedger", t, func() {
		ctx := context.Background()
		l := dedupe.NewMemoryLedger()
		key := dedupe.Key("app-1", model.OutcomePassed)

		Convey("When a key is recorded for the first time", func() {
			seen, err := l.SeenAndRecord(ctx, key)

			Convey("Then it is reported as new", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldBeFalse)
				So(l.Size(), ShouldEqual, 1)
			})

			Convey("And recorded again", func() {
				seen, err := l.SeenAndRecord(ctx, key)

				Convey("Then it is reported as seen", func() {
					So(err, ShouldBeNil)
					So(seen, ShouldBeTrue)
					So(l.Size(), ShouldEqual, 1)
				})
			})

			Convey("And unrecorded", func() {
				So(l.Unrecord(ctx, key), ShouldBeNil)

				Convey("Then it can be claimed again", func() {
					seen, err := l.SeenAndRecord(ctx, key)
					So(err, ShouldBeNil)
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When the same application has different outcomes", func() {
			_, _ = l.SeenAndRecord(ctx, dedupe.Key("app-1", model.OutcomePassed))
			seen, err := l.SeenAndRecord(ctx, dedupe.Key("app-1", model.OutcomeFailed))

			Convey("Then the keys are independent", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldBeFalse)
				So(l.Size(), ShouldEqual, 2)
			})
		})

		Convey("When an unknown key is unrecorded", func() {
			So(l.Unrecord(ctx, "nope"), ShouldBeNil)

			Convey("Then the size is unchanged", func() {
				So(l.Size(), ShouldEqual, 0)
			})
		})

		Convey("When many goroutines race for one key", func() {
			var wins atomic.Int32
			var wg sync.WaitGroup
			for i := 0; i < 64; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					if seen, err := l.SeenAndRecord(ctx, key); err == nil && !seen {
						wins.Add(1)
					}
				}()
			}
			wg.Wait()

			Convey("Then exactly one claims it", func() {
				So(wins.Load(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given a bounded ledger", t, func() {
		ctx := context.Background()
		l := dedupe.NewMemoryLedger(dedupe.WithMaxSize(2))
		for i := 0; i < 2; i++ {
			_, err := l.SeenAndRecord(ctx, fmt.Sprintf("k%d", i))
			So(err, ShouldBeNil)
		}

		Convey("When it is full", func() {
			_, err := l.SeenAndRecord(ctx, "k2")

			Convey("Then new keys are refused and old keys are kept", func() {
				So(errors.Is(err, dedupe.ErrLedgerFull), ShouldBeTrue)
				seen, err := l.SeenAndRecord(ctx, "k0")
				So(err, ShouldBeNil)
				So(seen, ShouldBeTrue)
			})
		})
	})
}
