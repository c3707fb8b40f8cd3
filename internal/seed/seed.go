// Package seed holds the starter astrology facts uploaded by `celestia seed`.
package seed

// Source names seeded chunks in the collection.
const Source = "seed"

var docs = []string{
	"Aries is a fire sign ruled by Mars. It represents initiative, courage, and impulse. Approximate dates: March 21 to April 19.",
	"Taurus is an earth sign ruled by Venus. It represents stability, pleasure, and material security. Dates: April 20 to May 20.",
	"Gemini is an air sign ruled by Mercury. It represents communication, versatility, and curiosity. Dates: May 21 to June 20.",
	"Cancer is a water sign ruled by the Moon. It represents emotions, protection, memories, and family. Dates: June 21 to July 22.",
	"Fire signs (Aries, Leo, Sagittarius) usually match well with other fire signs and with air signs.",
	"Earth signs (Taurus, Virgo, Capricorn) usually match well with other earth signs and with water signs.",
	"For a complete birth chart analysis you need: birth date, birth time, and birth place.",
	"Compatibility is not only about the Sun sign, but we can give a basic view by element.",
	"Leo is a fire sign ruled by the Sun. It represents creativity, leadership, and self-expression.",
	"Virgo is an earth sign ruled by Mercury. It represents organization, service, and attention to detail.",
}

// Docs returns a copy of the starter facts.
func Docs() []string {
	out := make([]string, len(docs))
	copy(out, docs)
	return out
}
