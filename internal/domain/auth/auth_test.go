package auth_test

import (
	"testing"

	"github.com/okian/scoreboard/internal/domain/auth"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPolicy(t *testing.T) {
	Convey("Given no secret", t, func() {
		p := auth.NewPolicy("")

		Convey("Every request is allowed", func() {
			So(p.Enforced(), ShouldBeFalse)
			So(p.Authorize(""), ShouldBeTrue)
			So(p.Authorize("anything"), ShouldBeTrue)
		})
	})

	Convey("Given a secret", t, func() {
		p := auth.NewPolicy("s3cret")

		Convey("Only the matching header passes", func() {
			So(p.Enforced(), ShouldBeTrue)
			So(p.Authorize("s3cret"), ShouldBeTrue)
			So(p.Authorize("  s3cret\n"), ShouldBeTrue)
			So(p.Authorize(""), ShouldBeFalse)
			So(p.Authorize("s3cre"), ShouldBeFalse)
			So(p.Authorize("s3cret-and-more"), ShouldBeFalse)
		})
	})
}
