package synth

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"
	"time"
)

var (
	firstNames = []string{
		"Antonio", "Manuel", "José", "Francisco", "David", "Juan", "Javier", "Daniel",
		"Carlos", "Alejandro", "Miguel", "Rafael", "Pablo", "Sergio", "Fernando", "Jorge",
		"María", "Carmen", "Ana", "Isabel", "Laura", "Lucía", "Cristina", "Marta",
		"Elena", "Pilar", "Rosa", "Paula", "Raquel", "Sara", "Beatriz", "Nuria",
	}
	surnames = []string{
		"García", "Rodríguez", "González", "Fernández", "López", "Martínez", "Sánchez", "Pérez",
		"Gómez", "Martín", "Jiménez", "Ruiz", "Hernández", "Díaz", "Moreno", "Muñoz",
		"Álvarez", "Romero", "Alonso", "Gutiérrez", "Navarro", "Torres", "Domínguez", "Vázquez",
		"Ramos", "Gil", "Ramírez", "Serrano", "Blanco", "Molina", "Morales", "Ortega",
	}
	companyStems = []string{
		"Soluciones", "Servicios", "Construcciones", "Distribuciones", "Consultores", "Tecnologías",
		"Inversiones", "Grupo", "Talleres", "Gestiones", "Suministros", "Transportes",
	}
	companyTails = []string{
		"Ibéricas", "del Norte", "Mediterráneo", "Levante", "Castilla", "Atlántico",
		"Integrales", "Avanzadas", "Hermanos Ruiz", "Iberia", "Sur", "Centro",
	}
	companyForms = []string{"S.L.", "S.A.", "S.L.U.", "S.Coop."}
	cities       = []string{
		"Madrid", "Barcelona", "Valencia", "Sevilla", "Zaragoza", "Málaga", "Murcia", "Palma",
		"Bilbao", "Alicante", "Córdoba", "Valladolid", "Vigo", "Gijón", "Granada", "Oviedo",
		"Pamplona", "Santander", "Toledo", "Salamanca", "Burgos", "Cáceres", "Logroño", "León",
	}
	provinces = map[string]string{
		"Madrid": "Madrid", "Barcelona": "Barcelona", "Valencia": "Valencia", "Sevilla": "Sevilla",
		"Zaragoza": "Zaragoza", "Málaga": "Málaga", "Murcia": "Murcia", "Palma": "Baleares",
		"Bilbao": "Vizcaya", "Alicante": "Alicante", "Córdoba": "Córdoba", "Valladolid": "Valladolid",
		"Vigo": "Pontevedra", "Gijón": "Asturias", "Granada": "Granada", "Oviedo": "Asturias",
		"Pamplona": "Navarra", "Santander": "Cantabria", "Toledo": "Toledo", "Salamanca": "Salamanca",
		"Burgos": "Burgos", "Cáceres": "Cáceres", "Logroño": "La Rioja", "León": "León",
	}
	streetKinds = []string{"Calle", "Avenida", "Plaza", "Paseo", "Camino", "Ronda"}
	streetNames = []string{
		"Mayor", "de la Constitución", "del Sol", "de Alcalá", "San Francisco", "Real",
		"de Andalucía", "del Carmen", "de Colón", "de la Paz", "Nueva", "de Goya",
	}
	sentences = []string{
		"Se adjunta la documentación acreditativa correspondiente al periodo indicado.",
		"La presente comunicación se emite conforme a la normativa vigente.",
		"El interesado podrá consultar el estado de su expediente en la sede electrónica.",
		"Los datos personales serán tratados de acuerdo con la legislación de protección de datos.",
		"Cualquier modificación deberá comunicarse por escrito con la antelación suficiente.",
		"El importe se abonará en la cuenta bancaria designada por el titular.",
		"Las partes manifiestan su conformidad con las condiciones expuestas.",
		"Se ruega conservar este documento como justificante.",
		"La entidad se reserva el derecho de revisar las condiciones en cualquier momento.",
		"Para más información puede dirigirse a la oficina de atención al ciudadano.",
		"Este documento carece de validez sin la firma y el sello correspondientes.",
		"Los trabajos se realizarán de acuerdo con las especificaciones técnicas acordadas.",
		"Se deberá aportar copia compulsada del documento nacional de identidad.",
		"Los plazos se computarán a partir del día siguiente a la recepción.",
		"La documentación presentada ha sido revisada por el departamento competente.",
		"El servicio se prestará en las instalaciones designadas por el cliente.",
	}
	monthNames = []string{
		"enero", "febrero", "marzo", "abril", "mayo", "junio",
		"julio", "agosto", "septiembre", "octubre", "noviembre", "diciembre",
	}
)

const (
	cifLetters = "ABCDEFGHJNPQRSUVW"
	dniLetters = "TRWAGMYFPDXBNJZSQVHLCKE"
	alnum      = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// faker produces Spanish-locale placeholder data from a seeded source.
type faker struct {
	r   *rand.Rand
	now time.Time
}

func newFaker(r *rand.Rand, now time.Time) *faker {
	return &faker{r: r, now: now}
}

func pick[T any](f *faker, items []T) T { return items[f.r.IntN(len(items))] }

// intn returns an integer in [lo, hi].
func (f *faker) intn(lo, hi int) int { return lo + f.r.IntN(hi-lo+1) }

func (f *faker) float(lo, hi float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round((lo+f.r.Float64()*(hi-lo))*p) / p
}

func (f *faker) chance(oneIn int) bool { return f.r.IntN(oneIn) == 0 }

func (f *faker) name() string {
	return pick(f, firstNames) + " " + pick(f, surnames) + " " + pick(f, surnames)
}

func (f *faker) company() string {
	if f.chance(3) {
		return pick(f, surnames) + " y " + pick(f, surnames) + " " + pick(f, companyForms)
	}
	return pick(f, companyStems) + " " + pick(f, companyTails) + " " + pick(f, companyForms)
}

func (f *faker) city() string { return pick(f, cities) }

func (f *faker) address() string {
	city := f.city()
	return fmt.Sprintf("%s %s, %d, %05d %s (%s)",
		pick(f, streetKinds), pick(f, streetNames), f.intn(1, 180), f.intn(1000, 52999), city, provinces[city])
}

func (f *faker) email(company string) string {
	local := pick(f, []string{"info", "administracion", "contacto", "facturacion", "comercial"})
	domain := strings.ToLower(strings.Fields(company)[0])
	domain = strings.NewReplacer("á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n").Replace(domain)
	return local + "@" + domain + pick(f, []string{".es", ".com", ".net"})
}

func (f *faker) cif() string {
	var b strings.Builder
	b.WriteByte(cifLetters[f.r.IntN(len(cifLetters))])
	for i := 0; i < 7; i++ {
		b.WriteByte(byte('0' + f.r.IntN(10)))
	}
	b.WriteByte(alnum[f.r.IntN(len(alnum))])
	return b.String()
}

func (f *faker) dni() string {
	n := f.intn(10000000, 99999999)
	return strconv.Itoa(n) + string(dniLetters[n%23])
}

func (f *faker) phone() string {
	switch pick(f, []byte("679")) {
	case '6':
		return "6" + strconv.Itoa(f.intn(10000000, 99999999))
	case '7':
		return "7" + strconv.Itoa(f.intn(10000000, 99999999))
	default:
		return "9" + strconv.Itoa(f.intn(1, 9)) + strconv.Itoa(f.intn(1000000, 9999999))
	}
}

func (f *faker) iban() string {
	return fmt.Sprintf("ES%02d %04d %04d %02d %010d",
		f.intn(10, 99), f.intn(1000, 9999), f.intn(1000, 9999), f.intn(10, 99), f.intn(1000000000, 9999999999))
}

// date returns a day between daysBack and daysTo days before now.
func (f *faker) date(daysBack, daysTo int) time.Time {
	return f.now.AddDate(0, 0, -f.intn(daysTo, daysBack))
}

func shortDate(t time.Time) string { return t.Format("02/01/2006") }

func longDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthNames[t.Month()-1], t.Year())
}

func (f *faker) sentence() string { return pick(f, sentences) }

func (f *faker) paragraph(n int) string {
	out := make([]string, n)
	for i := range out {
		out[i] = f.sentence()
	}
	return strings.Join(out, " ")
}

// currency formats an amount the Spanish way: 1.234,56€.
func currency(amount float64) string {
	neg := amount < 0
	cents := int64(math.Round(math.Abs(amount) * 100))
	whole := strconv.FormatInt(cents/100, 10)
	var b strings.Builder
	if neg {
		b.WriteByte('-')
	}
	for i, c := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(c)
	}
	fmt.Fprintf(&b, ",%02d€", cents%100)
	return b.String()
}
