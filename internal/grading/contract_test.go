package grading

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCheckDecisionContractAcceptsValidatedDecision(t *testing.T) {
	result := ValidateDecision(validAnswer(), threeCodes)
	require.True(t, result.OK, "errors: %v", result.Errors)

	require.NoError(t, CheckDecisionContract(*result.Data))
}

func TestCheckDecisionContractRejectsBrokenRecords(t *testing.T) {
	base := func() GradeDecision {
		result := ValidateDecision(validAnswer(), threeCodes)
		require.True(t, result.OK, "errors: %v", result.Errors)
		return *result.Data
	}

	unknownGrade := base()
	unknownGrade.OverallGrade = "EXCELLENT"
	require.Error(t, CheckDecisionContract(unknownGrade))

	unsupported := base()
	unsupported.CriterionChecks[0].Evidence = []EvidenceCitation{}
	require.Error(t, CheckDecisionContract(unsupported))

	badCitation := base()
	badCitation.CriterionChecks[1].Evidence = []EvidenceCitation{{Page: 0, Quote: "cover"}}
	require.Error(t, CheckDecisionContract(badCitation))

	emptyCitation := base()
	emptyCitation.CriterionChecks[1].Evidence = []EvidenceCitation{{Page: 2}}
	require.Error(t, CheckDecisionContract(emptyCitation))

	outOfRange := base()
	outOfRange.Confidence = 1.2
	require.Error(t, CheckDecisionContract(outOfRange))
}
