package names

import "testing"

func TestGood(t *testing.T) {
	var goodStrings = []string{
		"_",
		"a",
		"1",
		"0°",
		"air_temperature",
		"domain_0",
	}
	for i := range goodStrings {
		if !IsValid(goodStrings[i]) {
			t.Error("name should be good", goodStrings[i])
			return
		}
	}
}

func TestBad(t *testing.T) {
	var badStrings = []string{
		"",
		"_ ",
		"/",
		"no/good",
		"..",
		"\ta ",
		"1\t",
		"°",
		"°C",
		"\x08",
		"__schema__.json",
	}
	for i := range badStrings {
		if IsValid(badStrings[i]) {
			t.Error("name should be bad", badStrings[i])
			return
		}
	}
}
