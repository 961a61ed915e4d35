package utils

import (
	"time"

	cal "github.com/rickar/cal/v2"
)

// Argentine national holidays with a fixed date or an Easter offset.
// Movable "puente" days are decreed yearly and are not modeled.
var (
	arAnoNuevo       = fixedHoliday("Año Nuevo", time.January, 1)
	arMemoria        = fixedHoliday("Día de la Memoria", time.March, 24)
	arMalvinas       = fixedHoliday("Día del Veterano y Caídos en Malvinas", time.April, 2)
	arTrabajador     = fixedHoliday("Día del Trabajador", time.May, 1)
	arRevolucionMayo = fixedHoliday("Revolución de Mayo", time.May, 25)
	arBelgrano       = fixedHoliday("Paso a la Inmortalidad de Belgrano", time.June, 20)
	arIndependencia  = fixedHoliday("Día de la Independencia", time.July, 9)
	arInmaculada     = fixedHoliday("Inmaculada Concepción", time.December, 8)
	arNavidad        = fixedHoliday("Navidad", time.December, 25)

	arCarnavalLunes  = easterHoliday("Carnaval", -48)
	arCarnavalMartes = easterHoliday("Carnaval", -47)
	arViernesSanto   = easterHoliday("Viernes Santo", -2)
)

// create once at init
var arBusiness = cal.NewBusinessCalendar()

func init() {
	arBusiness.AddHoliday(
		arAnoNuevo,
		arCarnavalLunes,
		arCarnavalMartes,
		arMemoria,
		arMalvinas,
		arViernesSanto,
		arTrabajador,
		arRevolucionMayo,
		arBelgrano,
		arIndependencia,
		arInmaculada,
		arNavidad,
	)
}

func fixedHoliday(name string, month time.Month, day int) *cal.Holiday {
	return &cal.Holiday{
		Name:  name,
		Type:  cal.ObservancePublic,
		Month: month,
		Day:   day,
		Func:  cal.CalcDayOfMonth,
	}
}

func easterHoliday(name string, offset int) *cal.Holiday {
	return &cal.Holiday{
		Name:   name,
		Type:   cal.ObservancePublic,
		Offset: offset,
		Func:   cal.CalcEasterOffset,
	}
}

func IsARHoliday(t time.Time) bool {
	ok, _, _ := arBusiness.IsHoliday(t)
	return ok
}

// IsWorkday reports whether t falls on a weekday that is not a holiday.
func IsWorkday(t time.Time) bool {
	return arBusiness.IsWorkday(t)
}

// NextWorkdayAt returns hour:00 local time on the first workday on or
// after the calendar day of t in loc.
func NextWorkdayAt(t time.Time, loc *time.Location, hour int) time.Time {
	y, m, d := t.In(loc).Date()
	day := time.Date(y, m, d, hour, 0, 0, 0, loc)
	for i := 0; i < 14 && !IsWorkday(day); i++ {
		day = day.AddDate(0, 0, 1)
	}
	return day
}
