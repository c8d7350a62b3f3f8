package api

// User is the public profile returned by the server.
type User struct {
	ID          string `json:"id"`
	UserName    string `json:"username"`
	Email       string `json:"email"`
	CoinBalance int64  `json:"coin_balance"`
	CreatedAt   string `json:"created_at"`
}

// Auth is the result of a signup or login.
type Auth struct {
	User        User   `json:"user"`
	AccessToken string `json:"access_token"`
}

type Task struct {
	ID                 string  `json:"id"`
	CreatorID          string  `json:"creator_id"`
	CreatorName        string  `json:"creator_username"`
	Title              string  `json:"title"`
	Description        string  `json:"description"`
	Label              string  `json:"label"`
	CompletionCriteria string  `json:"completion_criteria"`
	BountyAmount       int64   `json:"bounty_amount"`
	Latitude           float64 `json:"latitude"`
	Longitude          float64 `json:"longitude"`
	LocationName       *string `json:"location_name"`
	Status             string  `json:"status"`
	CreatedAt          string  `json:"created_at"`
	UpdatedAt          string  `json:"updated_at"`
}

// NewTask is the input of CreateTask.
type NewTask struct {
	Title              string
	Description        string
	Label              string
	CompletionCriteria string
	BountyAmount       int64
	Latitude           float64
	Longitude          float64
	LocationName       *string
}

// TaskPatch carries only the fields to change.
type TaskPatch struct {
	Title              *string
	Description        *string
	CompletionCriteria *string
	BountyAmount       *int64
	Label              *string
}

type Submission struct {
	ID            string  `json:"id"`
	TaskID        string  `json:"task_id"`
	SubmitterID   string  `json:"submitter_id"`
	SubmitterName string  `json:"submitter_username"`
	ImageRef      string  `json:"image_ref"`
	ImageURL      string  `json:"image_url"`
	Note          *string `json:"note"`
	Status        string  `json:"status"`
	SubmittedAt   string  `json:"submitted_at"`
	ReviewedAt    *string `json:"reviewed_at"`
}

type Settlement struct {
	SubmissionID     string `json:"submission_id"`
	TaskID           string `json:"task_id"`
	CreatorID        string `json:"creator_id"`
	SubmitterID      string `json:"submitter_id"`
	Bounty           int64  `json:"bounty"`
	BaseReward       int64  `json:"base_reward"`
	Transferred      int64  `json:"transferred"`
	CreatorBalance   int64  `json:"creator_balance"`
	SubmitterBalance int64  `json:"submitter_balance"`
}

type LeaderboardEntry struct {
	UserID         string `json:"user_id"`
	UserName       string `json:"username"`
	CoinBalance    int64  `json:"coin_balance"`
	CompletedTasks int64  `json:"completed_tasks"`
}

type LedgerEntry struct {
	ID          string  `json:"id"`
	FromUserID  *string `json:"from_user_id"`
	ToUserID    string  `json:"to_user_id"`
	Amount      int64   `json:"amount"`
	Type        string  `json:"type"`
	TaskID      *string `json:"task_id"`
	Description string  `json:"description"`
	CreatedAt   string  `json:"created_at"`
}

// Upload is a presigned PUT target for a proof image.
type Upload struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	ExpiresAt   string `json:"expires_at"`
}
