package journal

import "errors"

const (
	MoodAwful = 1
	MoodSad   = 2
	MoodOkay  = 3
	MoodGood  = 4
	MoodGreat = 5
)

var (
	ErrMoodRequired = errors.New("mood is required")
	ErrInvalidMood  = errors.New("mood must be between 1 and 5")
	ErrFutureDate   = errors.New("date is in the future")
)

// Notice returns the message shown to the user for a rejected save, or "" when
// err is not a journal validation error.
func Notice(err error) string {
	switch {
	case errors.Is(err, ErrMoodRequired):
		return "Please select a mood"
	case errors.Is(err, ErrInvalidMood):
		return "Please pick a mood from Awful to Great"
	case errors.Is(err, ErrFutureDate):
		return "You cannot record mood for future dates!"
	}
	return ""
}

var moodLabels = [...]string{"", "Awful", "Sad", "Okay", "Good", "Great"}

// MoodLabel names a mood value; out of range values have no label.
func MoodLabel(mood int) string {
	if mood < MoodAwful || mood > MoodGreat {
		return ""
	}
	return moodLabels[mood]
}

func validMood(mood int) error {
	switch {
	case mood == 0:
		return ErrMoodRequired
	case mood < MoodAwful || mood > MoodGreat:
		return ErrInvalidMood
	}
	return nil
}
