package interval

import "testing"

func TestNewValidation(t *testing.T) {
    cases := []struct {
        name    string
        date    string
        start   string
        end     string
        wantErr bool
    }{
        {"valid afternoon", "2024-06-01", "14:00", "18:00", false},
        {"ends at midnight", "2024-06-01", "22:00", "24:00", false},
        {"inverted", "2024-06-01", "18:00", "14:00", true},
        {"zero length", "2024-06-01", "14:00", "14:00", true},
        {"bad date", "06/01/2024", "14:00", "18:00", true},
        {"bad clock", "2024-06-01", "25:00", "26:00", true},
        {"bad minutes", "2024-06-01", "14:61", "18:00", true},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            _, err := New(tc.date, tc.start, tc.end)
            if (err != nil) != tc.wantErr {
                t.Fatalf("New(%q, %q, %q) err = %v, wantErr %v", tc.date, tc.start, tc.end, err, tc.wantErr)
            }
        })
    }
}

func TestOverlaps(t *testing.T) {
    base := Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}
    cases := []struct {
        name  string
        other Range
        want  bool
    }{
        {"identical", Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}, true},
        {"contained", Range{Date: "2024-06-01", StartMin: 15 * 60, EndMin: 16 * 60}, true},
        {"overlap left edge", Range{Date: "2024-06-01", StartMin: 12 * 60, EndMin: 15 * 60}, true},
        {"overlap right edge", Range{Date: "2024-06-01", StartMin: 17 * 60, EndMin: 20 * 60}, true},
        {"one minute shared", Range{Date: "2024-06-01", StartMin: 18*60 - 1, EndMin: 19 * 60}, true},
        {"touching before", Range{Date: "2024-06-01", StartMin: 12 * 60, EndMin: 14 * 60}, false},
        {"touching after", Range{Date: "2024-06-01", StartMin: 18 * 60, EndMin: 20 * 60}, false},
        {"disjoint", Range{Date: "2024-06-01", StartMin: 8 * 60, EndMin: 10 * 60}, false},
        {"other date", Range{Date: "2024-06-02", StartMin: 14 * 60, EndMin: 18 * 60}, false},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            if got := base.Overlaps(tc.other); got != tc.want {
                t.Fatalf("Overlaps(%v) = %v, want %v", tc.other, got, tc.want)
            }
            // Overlap is symmetric.
            if got := tc.other.Overlaps(base); got != tc.want {
                t.Fatalf("Overlaps is not symmetric for %v", tc.other)
            }
        })
    }
}

func TestContains(t *testing.T) {
    outer := Range{Date: "2024-06-01", StartMin: 9 * 60, EndMin: 17 * 60}
    inner := Range{Date: "2024-06-01", StartMin: 10 * 60, EndMin: 12 * 60}
    if !outer.Contains(inner) {
        t.Fatalf("expected %v to contain %v", outer, inner)
    }
    if inner.Contains(outer) {
        t.Fatalf("did not expect %v to contain %v", inner, outer)
    }
    if !outer.Contains(outer) {
        t.Fatalf("a range should contain itself")
    }
    otherDay := Range{Date: "2024-06-02", StartMin: 10 * 60, EndMin: 12 * 60}
    if outer.Contains(otherDay) {
        t.Fatalf("ranges on different dates must not contain each other")
    }
}

func TestClockRoundTrip(t *testing.T) {
    for _, s := range []string{"00:00", "09:30", "14:00", "23:59"} {
        min, err := ParseClock(s)
        if err != nil {
            t.Fatalf("ParseClock(%q): %v", s, err)
        }
        if got := FormatClock(min); got != s {
            t.Fatalf("FormatClock(ParseClock(%q)) = %q", s, got)
        }
    }
}

func TestParseClockRejectsMalformedInput(t *testing.T) {
    for _, s := range []string{"", "14", "14:", ":30", "25:00", "24:01", "14:60", "14:-1", "14:00sharp", "14:00:00", "noon"} {
        if min, err := ParseClock(s); err == nil {
            t.Fatalf("ParseClock(%q) = %d, want error", s, min)
        }
    }
    // "24:00" alone may sit at the end of a range.
    if min, err := ParseClock("24:00"); err != nil || min != MinutesPerDay {
        t.Fatalf("ParseClock(24:00) = %d, %v, want %d", min, err, MinutesPerDay)
    }
}

func TestString(t *testing.T) {
    r := Range{Date: "2024-06-01", StartMin: 14 * 60, EndMin: 18 * 60}
    if got, want := r.String(), "2024-06-01 14:00-18:00"; got != want {
        t.Fatalf("String() = %q, want %q", got, want)
    }
    if got, want := r.Duration().Hours(), 4.0; got != want {
        t.Fatalf("Duration() = %v hours, want %v", got, want)
    }
}
