package services

// LevelThreshold maps cumulative points to a level tier. The table is the
// single authority for levels — level is always derived, never stored as truth.
type LevelThreshold struct {
	Level     int
	Name      string
	MinPoints int64
}

// LevelTable: ascending by MinPoints.
var LevelTable = []LevelThreshold{
	{1, "Fresher", 0},
	{2, "Note Taker", 100},
	{3, "Contributor", 250},
	{4, "Junior Scholar", 500},
	{5, "Senior Scholar", 1000},
	{6, "Campus Legend", 2500},
	{7, "Knowledge Guru", 5000},
}

// LevelForPoints returns the level tier for a cumulative point total.
func LevelForPoints(points int64) int {
	level := 1
	for _, t := range LevelTable {
		if points >= t.MinPoints {
			level = t.Level
		}
	}
	return level
}

// LevelName returns the display name for a level.
func LevelName(level int) string {
	for _, t := range LevelTable {
		if t.Level == level {
			return t.Name
		}
	}
	if level > LevelTable[len(LevelTable)-1].Level {
		return LevelTable[len(LevelTable)-1].Name
	}
	return LevelTable[0].Name
}

// LevelProgress returns points remaining to the next level and the progress
// percentage within the current band. At the top level both are pinned.
func LevelProgress(points int64) (toNext int64, pct float64) {
	level := LevelForPoints(points)
	if level >= LevelTable[len(LevelTable)-1].Level {
		return 0, 100
	}
	var floor, ceil int64
	for _, t := range LevelTable {
		if t.Level == level {
			floor = t.MinPoints
		}
		if t.Level == level+1 {
			ceil = t.MinPoints
		}
	}
	toNext = ceil - points
	if ceil > floor {
		pct = float64(points-floor) / float64(ceil-floor) * 100
	}
	return toNext, pct
}
