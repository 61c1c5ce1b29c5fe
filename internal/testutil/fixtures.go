// Package testutil holds corpus and benchmark fixtures shared by package
// tests. It must not import the packages under test.
package testutil

// FilmCorpus is a four-document corpus about films. Token counts per line
// are 3, 4, 3 and 5, so the average document length is 3.75. "movie" occurs
// in every document and "animation" in document 3 only.
var FilmCorpus = []string{
	"Movie\tAnimated movie\t120\t6.9\t2",
	"Non film\tAnimated movie\t15\t5.2\t0",
	"Animation\tShort movie\t800\t8.1\t9",
	"Short film\tAnimated short movie\t40\t7.4\t1",
}

// FilmBenchmark is the relevance judgement file for FilmCorpus.
const FilmBenchmark = "animated film\t1 3 4\nshort film\t3 4\n"
