package character

// RelationshipStage is the categorical closeness between a character and its user
type RelationshipStage string

const (
	StageAcquaintance RelationshipStage = "acquaintance"
	StageFriendship   RelationshipStage = "friendship"
	StageRomance      RelationshipStage = "romance"
	StageCommitment   RelationshipStage = "commitment"
)

var stageScores = map[RelationshipStage]int{
	StageAcquaintance: 10,
	StageFriendship:   30,
	StageRomance:      60,
	StageCommitment:   90,
}

// Score maps a stage onto the numeric stage score.
// Unknown stages score as an acquaintance.
func (s RelationshipStage) Score() int {
	if score, ok := stageScores[s]; ok {
		return score
	}
	return stageScores[StageAcquaintance]
}

// Valid reports whether s is one of the known stages
func (s RelationshipStage) Valid() bool {
	_, ok := stageScores[s]
	return ok
}

// StageForScore converts a stage score back into a stage using fixed breakpoints
func StageForScore(score int) RelationshipStage {
	switch {
	case score >= 90:
		return StageCommitment
	case score >= 60:
		return StageRomance
	case score >= 30:
		return StageFriendship
	default:
		return StageAcquaintance
	}
}
