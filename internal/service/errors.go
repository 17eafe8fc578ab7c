package service

import "errors"

var (
	// ErrInvalidInput indicates a request that passed struct validation but is still unusable.
	ErrInvalidInput = errors.New("invalid input")
	// ErrActivityNotFound indicates the activity does not exist or is not visible to the caller.
	ErrActivityNotFound = errors.New("activity not found")
	// ErrActivityNotApproved indicates credits were requested for an unapproved activity.
	ErrActivityNotApproved = errors.New("activity is not approved")
	// ErrActivityFinalized indicates the activity has already been approved or rejected.
	ErrActivityFinalized = errors.New("activity already finalized")
	// ErrDuplicateAward indicates credits were already awarded for the activity.
	ErrDuplicateAward = errors.New("credits already awarded for activity")
	// ErrAwardQuantityMissing indicates the activity lacks the measurement its rate applies to.
	ErrAwardQuantityMissing = errors.New("activity has no measurable quantity to award")
	// ErrInvalidAdjustment indicates a manual adjustment with an unsupported type or zero amount.
	ErrInvalidAdjustment = errors.New("invalid credit adjustment")
	// ErrWalletNotFound indicates the wallet does not exist.
	ErrWalletNotFound = errors.New("wallet not found")
	// ErrStudentNotFound indicates the student does not exist.
	ErrStudentNotFound = errors.New("student not found")
	// ErrRewardNotFound indicates the reward does not exist.
	ErrRewardNotFound = errors.New("reward not found")
	// ErrRewardUnavailable indicates the reward is inactive.
	ErrRewardUnavailable = errors.New("reward is not available")
	// ErrRedemptionCapReached indicates the reward has no redemptions left.
	ErrRedemptionCapReached = errors.New("reward redemption limit reached")
	// ErrInsufficientCredits indicates the wallet cannot cover the reward cost.
	ErrInsufficientCredits = errors.New("insufficient credits")
	// ErrRedemptionNotFound indicates the redemption does not exist.
	ErrRedemptionNotFound = errors.New("redemption not found")
	// ErrInvalidTransition indicates a redemption status change outside the lifecycle.
	ErrInvalidTransition = errors.New("invalid redemption status transition")
	// ErrEvidenceTooLarge indicates the uploaded evidence exceeded the configured limit.
	ErrEvidenceTooLarge = errors.New("evidence file exceeds maximum allowed size")
	// ErrEvidenceTypeNotAllowed indicates the evidence MIME type is not permitted.
	ErrEvidenceTypeNotAllowed = errors.New("evidence file type not allowed")
	// ErrEvidenceStorageUnavailable indicates no evidence storage is configured.
	ErrEvidenceStorageUnavailable = errors.New("evidence storage not configured")
)
