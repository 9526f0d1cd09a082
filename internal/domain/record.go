package domain

// FieldGroup names a set of record fields that are written together. Revisions are
// tracked per group.
type FieldGroup string

const (
	GroupProfile       FieldGroup = "profile"
	GroupTranscript    FieldGroup = "transcript"
	GroupConversations FieldGroup = "conversations"
	GroupOnboarding    FieldGroup = "onboarding"
	GroupFlags         FieldGroup = "flags"
)

// Record is the per-user document held by the profile store.
type Record struct {
	UserProfile                UserProfile           `json:"userProfile"`
	AiChatMessages             []AiChatMessage       `json:"aiChatMessages"`
	Conversations              []Conversation        `json:"conversations"`
	OnboardingStep             int                   `json:"onboardingStep"`
	UserTags                   Tags                  `json:"userTags"`
	SelectedRelationshipGoal   RelationshipType      `json:"selectedRelationshipGoal,omitempty"`
	OnboardingProgress         float64               `json:"onboardingProgress"`
	ShowExploreTabNotification bool                  `json:"showExploreTabNotification"`
	Revisions                  map[FieldGroup]uint64 `json:"revisions,omitempty"`
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.UserProfile = r.UserProfile.Clone()
	out.AiChatMessages = cloneTranscript(r.AiChatMessages)
	out.Conversations = CloneConversations(r.Conversations)
	out.UserTags = r.UserTags.Clone()
	if r.Revisions != nil {
		out.Revisions = make(map[FieldGroup]uint64, len(r.Revisions))
		for k, v := range r.Revisions {
			out.Revisions[k] = v
		}
	}
	return &out
}

// Revision returns the stored revision for g, zero when never stamped.
func (r *Record) Revision(g FieldGroup) uint64 {
	if r == nil || r.Revisions == nil {
		return 0
	}
	return r.Revisions[g]
}

// MaxRevision returns the largest revision across all groups.
func (r *Record) MaxRevision() uint64 {
	var max uint64
	if r == nil {
		return 0
	}
	for _, v := range r.Revisions {
		if v > max {
			max = v
		}
	}
	return max
}

func cloneTranscript(in []AiChatMessage) []AiChatMessage {
	if in == nil {
		return nil
	}
	out := make([]AiChatMessage, len(in))
	for i, m := range in {
		m.Options = append([]string(nil), m.Options...)
		out[i] = m
	}
	return out
}

// Patch is a partial Record for merge writes. Nil fields are left untouched.
type Patch struct {
	UserProfile                *UserProfile          `json:"userProfile,omitempty"`
	AiChatMessages             *[]AiChatMessage      `json:"aiChatMessages,omitempty"`
	Conversations              *[]Conversation       `json:"conversations,omitempty"`
	OnboardingStep             *int                  `json:"onboardingStep,omitempty"`
	UserTags                   *Tags                 `json:"userTags,omitempty"`
	SelectedRelationshipGoal   *RelationshipType     `json:"selectedRelationshipGoal,omitempty"`
	OnboardingProgress         *float64              `json:"onboardingProgress,omitempty"`
	ShowExploreTabNotification *bool                 `json:"showExploreTabNotification,omitempty"`
	Presence                   *Presence             `json:"presence,omitempty"`
	Revisions                  map[FieldGroup]uint64 `json:"revisions,omitempty"`
}

// Groups lists the field groups p touches. Presence alone does not count as a profile
// write: it is a single-field update that must not mask a pending profile edit.
func (p *Patch) Groups() []FieldGroup {
	var groups []FieldGroup
	if p.UserProfile != nil {
		groups = append(groups, GroupProfile)
	}
	if p.AiChatMessages != nil {
		groups = append(groups, GroupTranscript)
	}
	if p.Conversations != nil {
		groups = append(groups, GroupConversations)
	}
	if p.OnboardingStep != nil || p.UserTags != nil || p.SelectedRelationshipGoal != nil || p.OnboardingProgress != nil {
		groups = append(groups, GroupOnboarding)
	}
	if p.ShowExploreTabNotification != nil {
		groups = append(groups, GroupFlags)
	}
	return groups
}

// IsEmpty reports whether applying p would change nothing.
func (p *Patch) IsEmpty() bool {
	return len(p.Groups()) == 0 && p.Presence == nil
}

// Apply merges p into r field by field. Revisions merge key by key, keeping the larger value.
func (r *Record) Apply(p Patch) {
	if p.UserProfile != nil {
		r.UserProfile = p.UserProfile.Clone()
	}
	if p.Presence != nil {
		r.UserProfile.OnlineStatus = *p.Presence
	}
	if p.AiChatMessages != nil {
		r.AiChatMessages = cloneTranscript(*p.AiChatMessages)
	}
	if p.Conversations != nil {
		r.Conversations = CloneConversations(*p.Conversations)
	}
	if p.OnboardingStep != nil {
		r.OnboardingStep = *p.OnboardingStep
	}
	if p.UserTags != nil {
		r.UserTags = p.UserTags.Clone()
	}
	if p.SelectedRelationshipGoal != nil {
		r.SelectedRelationshipGoal = *p.SelectedRelationshipGoal
	}
	if p.OnboardingProgress != nil {
		r.OnboardingProgress = *p.OnboardingProgress
	}
	if p.ShowExploreTabNotification != nil {
		r.ShowExploreTabNotification = *p.ShowExploreTabNotification
	}
	if len(p.Revisions) > 0 {
		if r.Revisions == nil {
			r.Revisions = make(map[FieldGroup]uint64, len(p.Revisions))
		}
		for g, rev := range p.Revisions {
			if rev > r.Revisions[g] {
				r.Revisions[g] = rev
			}
		}
	}
}
