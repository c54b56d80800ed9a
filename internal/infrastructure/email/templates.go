package email

import "golang.org/x/text/language"

type recoveryTemplate struct {
	subject string
	// plain takes name, expiry date and link.
	plain string
	// html takes name, expiry date, link and link.
	html string
}

// supportedLanguages is ordered like recoveryTemplates; the first entry is
// the fallback.
var supportedLanguages = []language.Tag{
	language.French,
	language.English,
}

var recoveryTemplates = []recoveryTemplate{
	{
		subject: "Votre abonnement Jaxspot est actif",
		plain: `Bonjour %s,

Votre paiement a bien été reçu et votre abonnement est actif jusqu'au %s.

Retrouvez votre espace : %s
`,
		html: `
		<html>
		<body>
			<p>Bonjour %s,</p>
			<p>Votre paiement a bien été reçu et votre abonnement est actif jusqu'au %s.</p>
			<p><a href="%s">Retrouvez votre espace</a></p>
			<p>%s</p>
		</body>
		</html>
	`,
	},
	{
		subject: "Your Jaxspot subscription is active",
		plain: `Hello %s,

Your payment went through and your subscription is active until %s.

Visit your account: %s
`,
		html: `
		<html>
		<body>
			<p>Hello %s,</p>
			<p>Your payment went through and your subscription is active until %s.</p>
			<p><a href="%s">Visit your account</a></p>
			<p>%s</p>
		</body>
		</html>
	`,
	},
}
