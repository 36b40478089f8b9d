package synth

import (
	"fmt"
	"math"
	"strings"
)

const rule = "----------------------------------------------------------------------"

type lineItem struct {
	concept string
	qty     int
	price   float64
}

func (l lineItem) total() float64 { return float64(l.qty) * l.price }

var invoiceConcepts = []string{
	"Servicio de consultoría", "Desarrollo de software", "Mantenimiento web", "Diseño gráfico",
	"Asesoramiento técnico", "Formación presencial", "Licencia de software", "Hosting y dominio",
	"Soporte técnico", "Auditoría informática", "Material de oficina", "Equipamiento informático",
	"Servicios profesionales", "Redacción de contenidos", "Marketing digital",
}

var paymentMethods = []string{
	"Transferencia bancaria", "Domiciliación bancaria", "Tarjeta de crédito", "Efectivo", "Cheque",
}

func invoice(f *faker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FACTURA N.º %d/%04d\n\n", f.intn(2020, 2025), f.intn(1, 9999))
	fmt.Fprintf(&b, "Fecha de emisión: %s\n\n", shortDate(f.date(730, 0)))
	provider := f.company()
	fmt.Fprintf(&b, "DATOS DEL PROVEEDOR:\n%s\nCIF: %s\nDirección: %s\nTeléfono: %s\n\n", provider, f.cif(), f.address(), f.phone())
	fmt.Fprintf(&b, "DATOS DEL CLIENTE:\n%s\nNIF/CIF: %s\nDirección: %s\n\n", f.company(), f.cif(), f.address())
	b.WriteString("DETALLE DE LA FACTURA:\n\n")
	b.WriteString("CONCEPTO                          CANTIDAD    PRECIO UNIT.    TOTAL\n" + rule + "\n")
	var base float64
	for i, n := 0, f.intn(1, 5); i < n; i++ {
		l := lineItem{concept: pick(f, invoiceConcepts), qty: f.intn(1, 10), price: f.float(50, 500, 2)}
		base += l.total()
		fmt.Fprintf(&b, "%-30s  %4d    %12s  %12s\n", l.concept, l.qty, currency(l.price), currency(l.total()))
	}
	vat := pick(f, []int{21, 10, 4})
	vatAmount := base * float64(vat) / 100
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "\nBase imponible: %20s\n", currency(base))
	fmt.Fprintf(&b, "IVA (%d%%): %20s\n", vat, currency(vatAmount))
	fmt.Fprintf(&b, "\nTOTAL A PAGAR: %20s\n", currency(base+vatAmount))
	fmt.Fprintf(&b, "\nForma de pago: %s\n", pick(f, paymentMethods))
	if f.chance(3) {
		fmt.Fprintf(&b, "\nObservaciones: %s\n", f.sentence())
	}
	return b.String()
}

var (
	jobGrades = []string{
		"Oficial Administrativo", "Técnico Superior", "Analista Programador", "Auxiliar Administrativo",
		"Jefe de Departamento", "Comercial", "Contable", "Operario", "Encargado", "Director",
	}
	upperMonths = []string{
		"ENERO", "FEBRERO", "MARZO", "ABRIL", "MAYO", "JUNIO",
		"JULIO", "AGOSTO", "SEPTIEMBRE", "OCTUBRE", "NOVIEMBRE", "DICIEMBRE",
	}
)

func payslip(f *faker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "NÓMINA DE %s DE %d\n\n", pick(f, upperMonths), f.intn(2020, 2025))
	fmt.Fprintf(&b, "DATOS DE LA EMPRESA:\n%s\nCIF: %s\n\n", f.company(), f.cif())
	fmt.Fprintf(&b, "DATOS DEL TRABAJADOR:\nNombre: %s\nDNI: %s\nCategoría Profesional: %s\nGrupo de Cotización: %d\n\n",
		f.name(), f.dni(), pick(f, jobGrades), f.intn(1, 11))

	base := f.float(1000, 3000, 2)
	destino := f.float(100, 500, 2)
	especifico := f.float(50, 300, 2)
	seniority := f.float(0, base*0.1, 2)
	extra := 0.0
	if f.chance(3) {
		extra = f.float(0, base/12, 2)
	}
	gross := base + destino + especifico + seniority + extra

	row := func(label string, amount float64) {
		fmt.Fprintf(&b, "%-48s%20s\n", label, currency(amount))
	}
	b.WriteString("DEVENGOS:\n" + rule + "\n")
	row("Salario base", base)
	row("Complemento de destino", destino)
	row("Complemento específico", especifico)
	if seniority > 0 {
		row("Antigüedad", seniority)
	}
	if extra > 0 {
		row("Prorrata paga extra", extra)
	}
	b.WriteString(rule + "\n")
	row("TOTAL DEVENGOS:", gross)

	common, unemployment, training := gross*0.047, gross*0.0155, gross*0.001
	social := common + unemployment + training
	irpfRate := pick(f, []int{15, 18, 21, 24})
	irpf := gross * float64(irpfRate) / 100

	b.WriteString("\nDEDUCCIONES:\n" + rule + "\n")
	row("Contingencias comunes (4,70%)", common)
	row("Desempleo", unemployment)
	row("Formación profesional", training)
	row("TOTAL SEGURIDAD SOCIAL:", social)
	row(fmt.Sprintf("IRPF (%d%%)", irpfRate), irpf)
	b.WriteString(rule + "\n")
	row("TOTAL DEDUCCIONES:", social+irpf)
	b.WriteString("\n" + strings.Repeat("=", 70) + "\n")
	row("LÍQUIDO A PERCIBIR:", gross-social-irpf)
	b.WriteString(strings.Repeat("=", 70) + "\n\nFirma del trabajador:                           Sello de la empresa:\n")
	return b.String()
}

var (
	contractKinds = []struct{ title, kind string }{
		{"CONTRATO DE TRABAJO", "laboral"},
		{"CONTRATO DE ARRENDAMIENTO", "arrendamiento"},
		{"CONTRATO DE PRESTACIÓN DE SERVICIOS", "servicios"},
		{"CONTRATO INDEFINIDO", "laboral"},
		{"CONTRATO TEMPORAL", "laboral"},
	}
	positions = []string{"Técnico Administrativo", "Analista", "Comercial", "Desarrollador", "Contable", "Gestor"}
)

func contract(f *faker) string {
	ck := pick(f, contractKinds)
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nEn %s, a %s\n\nREUNIDOS\n\n", ck.title, f.city(), longDate(f.date(730, 0)))
	company := f.company()
	if ck.kind == "laboral" {
		fmt.Fprintf(&b, "DE UNA PARTE, %s, con CIF %s, en adelante denominada \"LA EMPRESA\".\n", company, f.cif())
		fmt.Fprintf(&b, "Y DE OTRA PARTE, %s, con DNI %s, en adelante denominado \"EL TRABAJADOR\".\n\n", f.name(), f.dni())
		b.WriteString("EXPONEN\n\nQue ambas partes se reconocen mutuamente capacidad legal suficiente para formalizar el presente contrato de trabajo, y al efecto\n\nACUERDAN\n\nLas siguientes cláusulas:\n\n")
		fmt.Fprintf(&b, "PRIMERA.- Objeto del contrato\nLA EMPRESA contrata a EL TRABAJADOR para prestar sus servicios profesionales como %s.\n\n", pick(f, positions))
		fmt.Fprintf(&b, "SEGUNDA.- Duración\nEl presente contrato tiene carácter %s, iniciándose en la fecha de firma del presente documento.\n\n", pick(f, []string{"indefinido", "temporal"}))
		fmt.Fprintf(&b, "TERCERA.- Jornada laboral\nLa jornada de trabajo será de tipo %s, con arreglo al calendario laboral vigente.\n\n", pick(f, []string{"completa", "parcial", "intensiva"}))
		fmt.Fprintf(&b, "CUARTA.- Retribución\nEl salario bruto anual será de %s, a abonar en 14 pagas.\n\n", currency(f.float(18000, 45000, 2)))
		fmt.Fprintf(&b, "QUINTA.- Periodo de prueba\nSe establece un periodo de prueba de %d meses.\n\n", f.intn(1, 3))
		b.WriteString("SEXTA.- Régimen de Seguridad Social\nEL TRABAJADOR quedará afiliado al Régimen General de la Seguridad Social.\n\n")
		b.WriteString("Y en prueba de conformidad, firman el presente contrato en el lugar y fecha indicados.\n\nLA EMPRESA                                    EL TRABAJADOR\n")
	} else {
		other, otherID, idKind := f.name(), f.dni(), "DNI"
		if ck.kind == "servicios" {
			other, otherID, idKind = f.company(), f.cif(), "CIF"
		}
		fmt.Fprintf(&b, "DE UNA PARTE, %s, con CIF %s, en adelante \"LA PARTE CONTRATANTE\".\n", company, f.cif())
		fmt.Fprintf(&b, "Y DE OTRA PARTE, %s, con %s %s, en adelante \"LA PARTE CONTRATADA\".\n\n", other, idKind, otherID)
		fmt.Fprintf(&b, "EXPONEN\n\nQue ambas partes acuerdan celebrar el presente contrato de %s, que se regirá por las siguientes\n\nCLÁUSULAS\n\n", ck.kind)
		fmt.Fprintf(&b, "PRIMERA.- Objeto del contrato\n%s\n\n", f.paragraph(2))
		fmt.Fprintf(&b, "SEGUNDA.- Obligaciones de las partes\nLA PARTE CONTRATADA se compromete a cumplir lo acordado. %s\n\n", f.sentence())
		fmt.Fprintf(&b, "TERCERA.- Precio\nEl precio total del contrato asciende a %s.\n\n", currency(f.float(5000, 50000, 2)))
		fmt.Fprintf(&b, "CUARTA.- Duración\nEl presente contrato tendrá una duración de %d meses, pudiendo prorrogarse previo acuerdo de las partes.\n\n", f.intn(6, 36))
		fmt.Fprintf(&b, "QUINTA.- Resolución\nAmbas partes podrán resolver el contrato mediante comunicación escrita con %d días de antelación.\n\n", pick(f, []int{15, 30, 60}))
		fmt.Fprintf(&b, "SEXTA.- Fuero\nLas partes se someten a los juzgados y tribunales de %s.\n\n", f.city())
		b.WriteString("Y en prueba de conformidad, las partes firman el presente contrato.\n\nLA PARTE CONTRATANTE                          LA PARTE CONTRATADA\n")
	}
	b.WriteString("Fdo.: ___________________                   Fdo.: ___________________\n")
	return b.String()
}

var quoteServices = []string{
	"Instalación eléctrica", "Reforma integral", "Pintura y decoración", "Desarrollo web",
	"Diseño de interiores", "Mantenimiento informático", "Asesoría legal", "Auditoría contable",
	"Servicio de limpieza", "Consultoría empresarial", "Traducción de documentos", "Formación especializada",
}

func quote(f *faker) string {
	var b strings.Builder
	validity := pick(f, []int{15, 30, 60, 90})
	company := f.company()
	b.WriteString("PRESUPUESTO - OFERTA ECONÓMICA\n\n")
	fmt.Fprintf(&b, "Número de presupuesto: PPTO-%d-%04d\nFecha de emisión: %s\nValidez: %d días\n\n", f.intn(2020, 2025), f.intn(1, 9999), shortDate(f.date(365, 0)), validity)
	fmt.Fprintf(&b, "DE:\n%s\nCIF: %s\n%s\nTeléfono: %s\nEmail: %s\n\n", company, f.cif(), f.address(), f.phone(), f.email(company))
	client := f.company()
	if f.chance(2) {
		client = f.name()
	}
	fmt.Fprintf(&b, "PARA:\n%s\n\nDESCRIPCIÓN DE LOS TRABAJOS:\n\n", client)
	var subtotal float64
	for i, n := 1, f.intn(2, 6); i <= n; i++ {
		l := lineItem{concept: pick(f, quoteServices), qty: f.intn(1, 10), price: f.float(100, 2000, 2)}
		subtotal += l.total()
		fmt.Fprintf(&b, "%d. %s\n   Cantidad: %d | Precio unitario: %s | Total: %s\n\n", i, l.concept, l.qty, currency(l.price), currency(l.total()))
	}
	vat := subtotal * 0.21
	b.WriteString(rule + "\n")
	fmt.Fprintf(&b, "Base imponible: %30s\nIVA (21%%): %30s\nTOTAL PRESUPUESTO: %30s\n", currency(subtotal), currency(vat), currency(subtotal+vat))
	b.WriteString(rule + "\n\nCONDICIONES:\n")
	fmt.Fprintf(&b, "- Presupuesto válido durante %d días desde la fecha de emisión.\n", validity)
	fmt.Fprintf(&b, "- Forma de pago: %s.\n", pick(f, []string{"50% al inicio y 50% a la entrega", "Pago único a la entrega", "Pago contra factura"}))
	fmt.Fprintf(&b, "- Plazo de ejecución: %d días hábiles.\n", pick(f, []int{7, 15, 30, 45}))
	b.WriteString("- Esta propuesta económica es una estimación; el coste final puede variar si cambian los trabajos.\n\n")
	fmt.Fprintf(&b, "Para aceptar este presupuesto, por favor firme y devuelva una copia.\n\nAtentamente,\n%s\n", company)
	return b.String()
}

var receiptKinds = []struct{ title, concept string }{
	{"RECIBO DE LUZ", "consumo eléctrico"},
	{"RECIBO DE AGUA", "consumo de agua"},
	{"RECIBO DE GAS", "consumo de gas"},
	{"RECIBO DE ALQUILER", "alquiler de vivienda"},
	{"RECIBO DE COMUNIDAD", "gastos de comunidad"},
	{"RECIBO DE TELÉFONO", "servicios de telefonía"},
	{"RECIBO DE INTERNET", "servicio de internet"},
}

func receipt(f *faker) string {
	rk := pick(f, receiptKinds)
	issued := shortDate(f.date(365, 0))
	from, to := f.date(60, 30), f.date(30, 0)
	account := f.iban()
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\nNúmero de recibo: %d%d\nFecha de emisión: %s\nPeriodo de facturación: %s - %s\n\n",
		rk.title, f.intn(2020, 2025), f.intn(100000, 999999), issued, shortDate(from), shortDate(to))
	fmt.Fprintf(&b, "EMISOR:\n%s\nCIF: %s\n\nTITULAR:\nNombre: %s\nDirección: %s\nCuenta de domiciliación: %s\n\n", f.company(), f.cif(), f.name(), f.address(), account)
	if strings.HasPrefix(rk.concept, "consumo") {
		units := f.intn(50, 500)
		unitPrice := f.float(0.10, 0.25, 3)
		usage := float64(units) * unitPrice
		fixed := f.float(10, 30, 2)
		taxes := usage * 0.05
		fmt.Fprintf(&b, "DETALLE DEL CONSUMO:\nConsumo periodo: %d unidades\nPrecio por unidad: %s\n", units, currency(unitPrice))
		fmt.Fprintf(&b, "Importe consumo: %30s\nTérmino fijo: %30s\nImpuestos (5%%): %30s\n", currency(usage), currency(fixed), currency(taxes))
		fmt.Fprintf(&b, "TOTAL A PAGAR: %30s\n\nCargo en cuenta: %s\nForma de pago: Domiciliación bancaria\n", currency(usage+fixed+taxes), issued)
	} else {
		fmt.Fprintf(&b, "CONCEPTO: %s\nIMPORTE: %s\nMensualidad correspondiente al periodo indicado.\nForma de pago: Domiciliación bancaria\nCuenta: %s\n\n",
			strings.ToUpper(rk.concept[:1])+rk.concept[1:], currency(f.float(300, 1500, 2)), account)
		b.WriteString("Recibí conforme el importe arriba indicado.\n\nFirma: ___________________\n")
	}
	return b.String()
}

var certificateKinds = []string{
	"CERTIFICADO DE EMPRESA", "CERTIFICADO ACADÉMICO", "CERTIFICADO MÉDICO",
	"CERTIFICADO DE EMPADRONAMIENTO", "CERTIFICADO DE ANTECEDENTES PENALES", "CERTIFICADO DE TRABAJO",
}

func certificate(f *faker) string {
	kind := pick(f, certificateKinds)
	place, when := f.city(), longDate(f.date(365, 0))
	reg := fmt.Sprintf("%d/%05d", f.intn(2020, 2025), f.intn(1, 9999))
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n\n", kind)
	switch {
	case strings.Contains(kind, "EMPRESA") || strings.Contains(kind, "TRABAJO"):
		company := f.company()
		fmt.Fprintf(&b, "Nº de registro: %s\n\n%s, con CIF %s, y domicilio social en %s,\n\nCERTIFICA:\n\n", reg, company, f.cif(), f.address())
		fmt.Fprintf(&b, "Que Don/Doña %s, con DNI %s, presta sus servicios en esta empresa como %s desde el día %s hasta la fecha actual.\n\n",
			f.name(), f.dni(), pick(f, positions), shortDate(f.date(1825, 365)))
		fmt.Fprintf(&b, "Y para que conste y surta los efectos oportunos, se expide el presente certificado en %s, a %s.\n\n", place, when)
		fmt.Fprintf(&b, "Fdo.: %s\n%s\n%s\n", f.name(), pick(f, []string{"Director de Recursos Humanos", "Gerente", "Representante Legal", "Administrador"}), company)
	case strings.Contains(kind, "ACADÉMICO"):
		fmt.Fprintf(&b, "Universidad de %s\nRegistro nº: %s\n\nCERTIFICA:\n\n", f.city(), reg)
		fmt.Fprintf(&b, "Que Don/Doña %s, con DNI %s, ha cursado los estudios correspondientes al %s en este centro universitario.\n\n",
			f.name(), f.dni(), pick(f, []string{"Grado en Administración y Dirección de Empresas", "Grado en Ingeniería Informática", "Grado en Derecho", "Máster en Finanzas", "Grado en Psicología"}))
		fmt.Fprintf(&b, "Nota media del expediente académico: %.1f\n\n", f.float(6.0, 9.5, 1))
		fmt.Fprintf(&b, "Y para que conste y a petición del interesado, se expide el presente certificado en %s, a %s.\n\nEL SECRETARIO ACADÉMICO\nFdo.: %s\n", place, when, f.name())
	default:
		fmt.Fprintf(&b, "%s %s\nExpediente: %s\n\nCERTIFICA:\n\n", pick(f, []string{"Ayuntamiento de", "Juzgado de", "Registro Civil de"}), place, reg)
		fmt.Fprintf(&b, "Que según los datos obrantes en este %s, Don/Doña %s, con DNI %s, consta inscrito a los efectos oportunos. %s\n\n",
			pick(f, []string{"registro", "organismo", "departamento"}), f.name(), f.dni(), f.sentence())
		fmt.Fprintf(&b, "Esta certificación se expide a petición del interesado y para los fines que estime convenientes.\n\nEn %s, a %s.\n\nEL SECRETARIO\nFdo.: %s\n", place, when, f.name())
	}
	return b.String()
}

var taxForms = []struct{ form, desc string }{
	{"Modelo 100", "Declaración de la Renta IRPF"},
	{"Modelo 130", "Pago fraccionado IRPF - Autónomos"},
	{"Modelo 303", "IVA Trimestral"},
	{"Modelo 390", "Resumen anual IVA"},
	{"Modelo 190", "Retenciones e ingresos a cuenta"},
}

func taxFiling(f *faker) string {
	tf := pick(f, taxForms)
	var b strings.Builder
	fmt.Fprintf(&b, "AGENCIA TRIBUTARIA\n\n%s - %s\nEjercicio: %d\nFecha de presentación: %s\n\n", tf.form, tf.desc, f.intn(2020, 2024), shortDate(f.date(365, 0)))
	taxpayer, nif, kind := f.name(), f.dni(), "Persona Física"
	if f.chance(3) {
		taxpayer, nif, kind = f.company(), f.cif(), "Persona Jurídica"
	}
	fmt.Fprintf(&b, "DATOS DEL CONTRIBUYENTE:\nNombre/Razón social: %s\nNIF/CIF: %s\nTipo: %s\nDomicilio fiscal: %s\n\n", taxpayer, nif, kind, f.address())
	var result float64
	switch {
	case strings.Contains(tf.desc, "IRPF"):
		work := f.float(15000, 45000, 2)
		capital := f.float(0, 5000, 2)
		savings := f.float(0, 10000, 2)
		deductions := f.float(0, 7000, 2)
		gross := (work+capital)*0.20 + savings*0.19
		net := max(0, gross-deductions)
		withheld := f.float(net*0.7, net*1.1, 2)
		result = net - withheld
		fmt.Fprintf(&b, "1. RENDIMIENTOS:\n   Rendimientos del trabajo: %25s\n   Rendimientos del capital: %25s\n", currency(work), currency(capital))
		fmt.Fprintf(&b, "2. BASE IMPONIBLE:\n   Base imponible general: %25s\n   Base imponible del ahorro: %25s\n", currency(work+capital), currency(savings))
		fmt.Fprintf(&b, "3. CUOTA ÍNTEGRA: %30s\n4. DEDUCCIONES: %30s\n5. CUOTA LÍQUIDA: %30s\n", currency(gross), currency(deductions), currency(net))
		fmt.Fprintf(&b, "6. RETENCIONES Y PAGOS A CUENTA: %25s\n", currency(withheld))
	case strings.Contains(tf.desc, "IVA"):
		base21, base10 := f.float(10000, 50000, 2), f.float(0, 20000, 2)
		accrued := base21*0.21 + base10*0.10
		deductible := f.float(accrued*0.3, accrued*0.9, 2)
		result = accrued - deductible
		fmt.Fprintf(&b, "Periodo: %s\n\nIVA DEVENGADO:\n   Base imponible 21%%: %25s\n   Base imponible 10%%: %25s\n   Total cuota devengada: %25s\n",
			pick(f, []string{"1T", "2T", "3T", "4T"}), currency(base21), currency(base10), currency(accrued))
		fmt.Fprintf(&b, "IVA DEDUCIBLE:\n   Cuotas soportadas: %25s\n", currency(deductible))
	default:
		perceptors := f.intn(1, 40)
		withheld := f.float(1000, 60000, 2)
		result = withheld
		fmt.Fprintf(&b, "Número de perceptores: %d\nImporte de las percepciones: %s\nRetenciones e ingresos a cuenta: %s\n", perceptors, currency(withheld/0.15), currency(withheld))
	}
	label := "A INGRESAR"
	if result < 0 {
		label = "A DEVOLVER"
	}
	fmt.Fprintf(&b, "\nRESULTADO DE LA DECLARACIÓN: %s: %s\n\nEl contribuyente declara que los datos consignados son ciertos ante la Hacienda Pública.\n", label, currency(math.Abs(result)))
	return b.String()
}

var (
	agencies = []string{
		"Agencia Tributaria", "Seguridad Social", "Ayuntamiento", "Juzgado de lo Social",
		"Tesorería General de la Seguridad Social", "Consejería de Hacienda", "Servicio Público de Empleo",
	}
	noticeKinds = []string{
		"NOTIFICACIÓN DE RESOLUCIÓN", "REQUERIMIENTO DE DOCUMENTACIÓN", "APERTURA DE PROCEDIMIENTO SANCIONADOR",
		"NOTIFICACIÓN DE LIQUIDACIÓN", "COMUNICACIÓN ADMINISTRATIVA", "CITACIÓN COMPARECENCIA",
	}
)

func notice(f *faker) string {
	kind := pick(f, noticeKinds)
	recipient, id := f.name(), f.dni()
	if f.chance(2) {
		recipient, id = f.company(), f.cif()
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n\n%s\n\nExpediente: EXP/%d/%05d\nFecha: %s\n\n", strings.ToUpper(pick(f, agencies)), f.city(), kind, f.intn(2020, 2025), f.intn(10000, 99999), longDate(f.date(180, 0)))
	fmt.Fprintf(&b, "DESTINATARIO:\n%s\nNIF/CIF: %s\nDomicilio: %s\n\n", recipient, id, f.address())
	b.WriteString("Por medio del presente escrito se le notifica el acto que se detalla a continuación.\n\n")
	switch {
	case strings.Contains(kind, "REQUERIMIENTO"):
		fmt.Fprintf(&b, "Por medio de la presente se le notifica que, en el plazo de %d días hábiles, deberá aportar la siguiente documentación:\n\n", pick(f, []int{10, 15, 20, 30}))
		fmt.Fprintf(&b, "1. %s\n2. %s\n3. %s\n\n", f.sentence(), f.sentence(), f.sentence())
		b.WriteString("La no aportación de la documentación requerida en el plazo señalado podrá dar lugar al archivo de las actuaciones.\n\n")
		b.WriteString("RECURSOS:\nContra el presente acto podrá interponer RECURSO DE ALZADA en el plazo de UN MES contado desde el día siguiente a su notificación.\n")
	case strings.Contains(kind, "SANCIONADOR"):
		fmt.Fprintf(&b, "HECHOS:\n%s\n\nSANCIÓN PROPUESTA: %s\n\n", f.paragraph(3), currency(f.float(300, 3000, 2)))
		fmt.Fprintf(&b, "TRÁMITE DE ALEGACIONES:\nDispone de un plazo de %d DÍAS HÁBILES para formular alegaciones y presentar los documentos que estime pertinentes.\n\n", pick(f, []int{10, 15}))
		fmt.Fprintf(&b, "INSTRUCTOR DEL EXPEDIENTE:\n%s\n", f.name())
	case strings.Contains(kind, "LIQUIDACIÓN"):
		amount := f.float(500, 5000, 2)
		fmt.Fprintf(&b, "CONCEPTO: %s\n", pick(f, []string{"Impuesto sobre Bienes Inmuebles", "Tasa por licencia de apertura", "Cuota de Seguridad Social", "Impuesto de Actividades Económicas"}))
		fmt.Fprintf(&b, "Base: %30s\nRecargos e intereses: %30s\nTOTAL A INGRESAR: %30s\n\n", currency(amount*0.8), currency(amount*0.2), currency(amount))
		fmt.Fprintf(&b, "PLAZO DE INGRESO: %d días hábiles desde la recepción de esta notificación.\nEn caso de disconformidad, podrá interponer RECURSO DE REPOSICIÓN en el plazo de UN MES.\n", pick(f, []int{10, 15, 20}))
	default:
		fmt.Fprintf(&b, "ANTECEDENTES:\n%s\n\nPor todo ello, SE RESUELVE:\n\nPRIMERO.- %s\nSEGUNDO.- %s\n", f.paragraph(4), f.sentence(), f.sentence())
		b.WriteString("TERCERO.- Contra la presente resolución administrativa cabe interponer recurso en el plazo de UN MES.\n")
	}
	fmt.Fprintf(&b, "\nEn %s, a %s.\n", f.city(), longDate(f.date(30, 0)))
	return b.String()
}
