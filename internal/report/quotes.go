package report

import "math/rand"

// Closing remarks appended to successful claim messages.
var quotes = []string{
	"麦门永存，薯条自由。",
	"今天也是为麦门奋斗的一天。",
	"省下的每一分钱，都是对生活的热爱。",
	"羊毛虽小，日积月累。",
	"一顿不吃饿得慌，有券不用心发慌。",
	"麦香传千里，优惠暖人心。",
	"领券五分钟，快乐一整天。",
}

// RandomQuote returns one closing remark at random.
func RandomQuote() string {
	return quotes[rand.Intn(len(quotes))]
}
