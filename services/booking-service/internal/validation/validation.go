package validation

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	"github.com/go-playground/validator/v10"
	"github.com/md-rashed-zaman/sevabook/services/booking-service/internal/catalog"
)

const dateLayout = "2006-01-02"

// Field keys reported in Result.Errors.
const (
	FieldName         = "name"
	FieldPhone        = "phone"
	FieldEmail        = "email"
	FieldService      = "service"
	FieldDate         = "date"
	FieldTime         = "time"
	FieldAddress      = "address"
	FieldBirthDate    = "birthDate"
	FieldBirthHours   = "birthHours"
	FieldBirthMinutes = "birthMinutes"
	FieldBirthPeriod  = "birthPeriod"
	FieldBirthPlace   = "birthPlace"
)

var (
	emailShape    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	earliestBirth = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)
)

// IST is where every service is performed; "today" is judged on its calendar.
var IST = time.FixedZone("IST", 5*60*60+30*60)

// Input is a candidate booking as submitted by the customer.
// Birth hours and minutes are pointers so that an explicit 0 is distinguishable from "not given".
type Input struct {
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Email           string `json:"email"`
	Service         string `json:"service"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	Address         string `json:"address"`
	SpecialRequests string `json:"specialRequests,omitempty"`
	BirthDate       string `json:"birthDate,omitempty"`
	BirthHours      *int   `json:"birthHours,omitempty"`
	BirthMinutes    *int   `json:"birthMinutes,omitempty"`
	BirthPeriod     string `json:"birthPeriod,omitempty"`
	BirthPlace      string `json:"birthPlace,omitempty"`
	// Amount is accepted for compatibility with older clients and always ignored.
	Amount *int64 `json:"amount,omitempty"`
}

// Normalized returns a copy of in with every text field trimmed and the birth period
// upper-cased. Validate judges this form and callers should persist it.
func (in Input) Normalized() Input {
	out := in
	for _, f := range []*string{
		&out.Name, &out.Phone, &out.Email, &out.Service, &out.Date, &out.Time, &out.Address,
		&out.SpecialRequests, &out.BirthDate, &out.BirthPeriod, &out.BirthPlace,
	} {
		*f = strings.TrimSpace(*f)
	}
	out.BirthPeriod = strings.ToUpper(out.BirthPeriod)
	return out
}

type Result struct {
	Valid  bool              `json:"isValid"`
	Errors map[string]string `json:"errors"`
}

type Validator struct {
	v       *validator.Validate
	catalog *catalog.Catalog
	now     func() time.Time
}

type Option func(*Validator)

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(v *Validator) { v.now = now }
}

func New(c *catalog.Catalog, opts ...Option) *Validator {
	val := &Validator{
		v:       validator.New(),
		catalog: c,
		now:     func() time.Time { return time.Now().In(IST) },
	}
	for _, opt := range opts {
		opt(val)
	}
	// Registration only fails on empty tags or nil funcs.
	_ = val.v.RegisterValidation("personname", isPersonName)
	_ = val.v.RegisterValidation("phone10", isPhone10)
	_ = val.v.RegisterValidation("emailshape", func(fl validator.FieldLevel) bool {
		return emailShape.MatchString(fl.Field().String())
	})
	_ = val.v.RegisterValidation("catalog", func(fl validator.FieldLevel) bool {
		_, ok := val.catalog.Lookup(fl.Field().String())
		return ok
	})
	_ = val.v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		p := fl.Field().String()
		return p == "AM" || p == "PM"
	})
	return val
}

// Validate checks every field independently and accumulates the failures.
func (val *Validator) Validate(in Input, lang string) Result {
	in = in.Normalized()
	errs := map[string]string{}
	msg := messagesFor(lang)

	val.check(errs, msg, FieldName, in.Name, "required,min=2,max=50,personname")
	val.check(errs, msg, FieldPhone, in.Phone, "required,phone10")
	val.check(errs, msg, FieldEmail, in.Email, "required,emailshape")
	val.check(errs, msg, FieldService, in.Service, "required,catalog")
	val.check(errs, msg, FieldTime, in.Time, "required")
	val.check(errs, msg, FieldAddress, in.Address, "required")

	today := val.today()
	if code := checkBookingDate(in.Date, today); code != "" {
		errs[FieldDate] = msg.get(FieldDate, code)
	}

	if entry, ok := val.catalog.Lookup(in.Service); ok && entry.RequiresBirthDetails {
		if code := checkBirthDate(in.BirthDate, today); code != "" {
			errs[FieldBirthDate] = msg.get(FieldBirthDate, code)
		}
		val.checkInt(errs, msg, FieldBirthHours, in.BirthHours, "min=1,max=12")
		val.checkInt(errs, msg, FieldBirthMinutes, in.BirthMinutes, "min=0,max=59")
		val.check(errs, msg, FieldBirthPeriod, in.BirthPeriod, "required,period")
		val.check(errs, msg, FieldBirthPlace, in.BirthPlace, "required,min=2,max=100")
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func (val *Validator) check(errs map[string]string, msg messages, field, value, tags string) {
	if err := val.v.Var(value, tags); err != nil {
		errs[field] = msg.get(field, failedTag(err))
	}
}

func (val *Validator) checkInt(errs map[string]string, msg messages, field string, value *int, tags string) {
	if value == nil {
		errs[field] = msg.get(field, "required")
		return
	}
	if err := val.v.Var(*value, tags); err != nil {
		errs[field] = msg.get(field, "range")
	}
}

func (val *Validator) today() time.Time {
	now := val.now()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func failedTag(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		switch tag := verrs[0].Tag(); tag {
		case "required":
			return "required"
		case "min", "max":
			return "length"
		}
	}
	return "invalid"
}

func checkBookingDate(raw string, today time.Time) string {
	if raw == "" {
		return "required"
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "invalid"
	}
	if d.Before(today) {
		return "past"
	}
	return ""
}

func checkBirthDate(raw string, today time.Time) string {
	if raw == "" {
		return "required"
	}
	d, err := time.Parse(dateLayout, raw)
	if err != nil {
		return "invalid"
	}
	if d.After(today) {
		return "future"
	}
	if d.Before(earliestBirth) {
		return "range"
	}
	return ""
}

func isPersonName(fl validator.FieldLevel) bool {
	for _, r := range fl.Field().String() {
		if unicode.IsLetter(r) || unicode.Is(unicode.Mn, r) || unicode.Is(unicode.Mc, r) {
			continue
		}
		switch r {
		case ' ', '-', '\'':
			continue
		}
		return false
	}
	return true
}

func isPhone10(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if len(s) != 10 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
